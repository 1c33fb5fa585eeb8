package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/types"
)

// Seed loads a seed directory into the service's stores: catalogs first,
// then aliases and modifications, then manifests.
func (s Service) Seed(ctx context.Context, req SeedRequest) (SeedResult, error) {
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		return SeedResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("seed directory is required")
	}
	seed, err := s.Seeds.Load(ctx, dir)
	if err != nil {
		return SeedResult{}, err
	}

	published := map[string]struct{}{}
	for _, catalog := range seed.Catalogs {
		if _, err := s.Catalogs.Publish(ctx, catalog.Name, catalog.Entries); err != nil {
			return SeedResult{}, err
		}
		published[catalog.Name] = struct{}{}
	}
	if len(seed.Aliases) > 0 {
		if err := s.Manifests.SetAliases(ctx, seed.Aliases); err != nil {
			return SeedResult{}, err
		}
	}
	if len(seed.Modifications) > 0 {
		if err := s.Manifests.SetModifications(ctx, seed.Modifications); err != nil {
			return SeedResult{}, err
		}
	}
	for _, manifest := range seed.Manifests {
		if _, err := s.Manifests.Upsert(ctx, manifest.Name, manifest); err != nil {
			return SeedResult{}, err
		}
	}

	result := SeedResult{
		Manifests:       len(seed.Manifests),
		Aliases:         len(seed.Aliases),
		Modifications:   len(seed.Modifications),
		MissingIncludes: missingIncludes(s.Manifests.Snapshot()),
	}
	for _, name := range sortedNames(published) {
		catalog, err := s.Catalogs.Get(ctx, name, time.Time{})
		if err != nil {
			return SeedResult{}, err
		}
		active := 0
		for _, entry := range catalog.Entries {
			if !entry.Inactive {
				active++
			}
		}
		result.Catalogs = append(result.Catalogs, CatalogSummary{
			Name:    name,
			Version: catalog.Version,
			Entries: len(catalog.Entries),
			Active:  active,
		})
	}
	log.Ctx(ctx).Info().
		Str("dir", dir).
		Int("catalogs", len(result.Catalogs)).
		Int("manifests", result.Manifests).
		Msg("seed loaded")
	return result, nil
}

// missingIncludes lists "manifest -> include" for includes naming a
// manifest that does not exist.
func missingIncludes(set *types.ManifestSet) []string {
	var out []string
	for _, name := range sortedNames(set.Manifests) {
		for _, include := range set.Manifests[name].Includes {
			if _, ok := set.Manifest(include.Name); !ok {
				out = append(out, name+" -> "+include.Name)
			}
		}
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
