package ports

import (
	"context"
	"time"

	"fleet-manifests/internal/types"
)

// CatalogStorePort holds every published catalog version. Readers never
// observe a partially published version.
type CatalogStorePort interface {
	// Get returns the newest version of name published at or before asOf;
	// a zero asOf means the latest version.
	Get(ctx context.Context, name string, asOf time.Time) (*types.Catalog, error)
	// Publish merges entries into the latest version of name, validates
	// the result and makes it current. It returns the new version id.
	Publish(ctx context.Context, name string, entries []types.PackageEntry) (int, error)
	// Snapshot returns the latest version of every catalog.
	Snapshot() types.CatalogSet
}
