package ports

import (
	"context"

	"fleet-manifests/internal/types"
)

// AuthPort verifies bearer tokens presented to the HTTP zones.
type AuthPort interface {
	AuthenticateClient(ctx context.Context, token string) (types.Identity, error)
	AuthenticateAdmin(ctx context.Context, token string) error
}
