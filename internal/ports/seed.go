package ports

import (
	"context"

	"fleet-manifests/internal/types"
)

// SeedSourcePort loads catalogs, manifests, aliases and modifications
// from a seed directory.
type SeedSourcePort interface {
	Load(ctx context.Context, dir string) (types.Seed, error)
}
