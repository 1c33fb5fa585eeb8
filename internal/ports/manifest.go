package ports

import (
	"context"
	"time"

	"fleet-manifests/internal/types"
)

// ManifestStorePort holds the manifest set together with the aliases and
// modifications that are applied while resolving it.
type ManifestStorePort interface {
	Get(ctx context.Context, name string, asOf time.Time) (types.Manifest, error)
	Upsert(ctx context.Context, name string, manifest types.Manifest) (int, error)
	SetAliases(ctx context.Context, aliases []types.Alias) error
	SetModifications(ctx context.Context, mods []types.Modification) error
	// Snapshot is an immutable view of the whole set at one instant.
	Snapshot() *types.ManifestSet
}
