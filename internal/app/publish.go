package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"fleet-manifests/internal/types"
)

// PublishCatalog merges entries into the named catalog and returns the
// new catalog version.
func (s Service) PublishCatalog(ctx context.Context, name string, entries []types.PackageEntry) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("catalog name is required")
	}
	return s.Catalogs.Publish(ctx, name, entries)
}

// UpsertManifest stores manifest under name and returns its new version.
func (s Service) UpsertManifest(ctx context.Context, name string, manifest types.Manifest) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest name is required")
	}
	return s.Manifests.Upsert(ctx, name, manifest)
}
