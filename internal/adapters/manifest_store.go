package adapters

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/core"
	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

// ManifestStore keeps the manifest set copy-on-write. Upserts are
// single-writer transactions over the whole set, so a cycle can never be
// introduced by two concurrent edits to different manifests.
type ManifestStore struct {
	mu       sync.Mutex
	state    atomic.Pointer[manifestState]
	catalogs ports.CatalogStorePort
	clock    func() time.Time
}

type manifestState struct {
	set     *types.ManifestSet
	history map[string][]types.Manifest
}

// NewManifestStore builds an empty store. catalogs is consulted to reject
// scopes naming catalogs that were never published; it may be nil.
func NewManifestStore(catalogs ports.CatalogStorePort, clock func() time.Time) *ManifestStore {
	if clock == nil {
		clock = time.Now
	}
	store := &ManifestStore{catalogs: catalogs, clock: clock}
	store.state.Store(&manifestState{
		set: &types.ManifestSet{
			Manifests: map[string]types.Manifest{},
			Aliases:   map[string]types.Alias{},
		},
		history: map[string][]types.Manifest{},
	})
	return store
}

func (s *ManifestStore) Snapshot() *types.ManifestSet {
	return s.state.Load().set
}

func (s *ManifestStore) Get(ctx context.Context, name string, asOf time.Time) (types.Manifest, error) {
	versions := s.state.Load().history[name]
	if len(versions) == 0 {
		return types.Manifest{}, types.NewError(types.KindNotFound, fmt.Sprintf("manifest %s not found", name), name)
	}
	if asOf.IsZero() {
		return versions[len(versions)-1], nil
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].UpdatedAt.After(asOf) {
			return versions[i], nil
		}
	}
	return types.Manifest{}, types.NewError(types.KindNotFound,
		fmt.Sprintf("manifest %s has no version at or before %s", name, asOf.Format(time.RFC3339)), name)
}

func (s *ManifestStore) Upsert(ctx context.Context, name string, manifest types.Manifest) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, types.NewError(types.KindValidation, "manifest name is required")
	}
	if manifest.Name != "" && manifest.Name != name {
		return 0, types.NewError(types.KindValidation,
			fmt.Sprintf("manifest body names %s but was stored as %s", manifest.Name, name), name, manifest.Name)
	}
	manifest.Name = name
	if err := s.validate(ctx, manifest); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state.Load()
	manifests := maps.Clone(current.set.Manifests)
	history := current.history[name]
	manifest.Version = 1
	if len(history) > 0 {
		manifest.Version = history[len(history)-1].Version + 1
	}
	manifest.UpdatedAt = s.clock().UTC()
	manifests[name] = manifest

	if cycle := core.FindCycle(name, core.ManifestIncludes(manifests)); cycle != nil {
		return 0, core.NewCycleError(cycle)
	}
	for _, include := range manifest.Includes {
		if _, ok := manifests[include.Name]; !ok {
			log.Ctx(ctx).Warn().
				Str("manifest", name).
				Str("include", include.Name).
				Msg("manifest includes a manifest that does not exist yet")
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	next := &manifestState{
		set: &types.ManifestSet{
			Manifests:     manifests,
			Aliases:       current.set.Aliases,
			Modifications: current.set.Modifications,
		},
		history: maps.Clone(current.history),
	}
	next.history[name] = append(slices.Clone(history), manifest)
	s.state.Store(next)

	log.Ctx(ctx).Info().
		Str("manifest", name).
		Int("version", manifest.Version).
		Msg("manifest stored")
	return manifest.Version, nil
}

// validate checks everything about a manifest that does not depend on
// the rest of the set.
func (s *ManifestStore) validate(ctx context.Context, manifest types.Manifest) error {
	for _, catalog := range manifest.Catalogs {
		if strings.TrimSpace(catalog) == "" {
			return types.NewError(types.KindValidation,
				fmt.Sprintf("manifest %s has an empty catalog in its scope", manifest.Name), manifest.Name)
		}
		if s.catalogs == nil {
			continue
		}
		if _, err := s.catalogs.Get(ctx, catalog, time.Time{}); err != nil {
			return types.WrapError(types.KindNotFound,
				fmt.Sprintf("manifest %s scopes catalog %s which has never been published", manifest.Name, catalog),
				err, catalog, manifest.Name)
		}
	}
	for _, include := range manifest.Includes {
		if strings.TrimSpace(include.Name) == "" {
			return types.NewError(types.KindValidation,
				fmt.Sprintf("manifest %s has an include without a name", manifest.Name), manifest.Name)
		}
		if _, err := core.ParseCondition(include.Condition); err != nil {
			return err
		}
	}
	refs := append(slices.Clone(manifest.Installs), manifest.Uninstalls...)
	for _, ref := range refs {
		if _, err := core.ParseCondition(ref.Condition); err != nil {
			return err
		}
		parsed, err := core.ParseReference(ref.Name, manifest.Name)
		if err != nil {
			return types.WrapError(types.KindValidation,
				fmt.Sprintf("manifest %s: invalid reference %q", manifest.Name, ref.Name), err, ref.Name, manifest.Name)
		}
		if parsed.Catalog != "" && len(manifest.Catalogs) > 0 && !slices.Contains(manifest.Catalogs, parsed.Catalog) {
			return types.NewError(types.KindScope,
				fmt.Sprintf("manifest %s references %s outside its catalog scope [%s]",
					manifest.Name, parsed.Raw, strings.Join(manifest.Catalogs, ", ")),
				parsed.Raw, parsed.Catalog, manifest.Name)
		}
	}
	return nil
}

// SetAliases replaces the alias table.
func (s *ManifestStore) SetAliases(ctx context.Context, aliases []types.Alias) error {
	table := make(map[string]types.Alias, len(aliases))
	for _, alias := range aliases {
		alias.Name = strings.TrimSpace(alias.Name)
		alias.Target = strings.TrimSpace(alias.Target)
		if alias.Name == "" || alias.Target == "" {
			return types.NewError(types.KindValidation, "alias needs a name and a target", alias.Name)
		}
		if alias.Name == alias.Target {
			return types.NewError(types.KindValidation, fmt.Sprintf("alias %s points at itself", alias.Name), alias.Name)
		}
		table[alias.Name] = alias
	}
	s.swapPolicy(func(set *types.ManifestSet) { set.Aliases = table })
	log.Ctx(ctx).Info().Int("aliases", len(table)).Msg("aliases stored")
	return nil
}

// SetModifications replaces the modification list.
func (s *ManifestStore) SetModifications(ctx context.Context, mods []types.Modification) error {
	for _, mod := range mods {
		if err := core.ValidateModification(mod); err != nil {
			return err
		}
	}
	list := slices.Clone(mods)
	s.swapPolicy(func(set *types.ManifestSet) { set.Modifications = list })
	log.Ctx(ctx).Info().Int("modifications", len(list)).Msg("modifications stored")
	return nil
}

func (s *ManifestStore) swapPolicy(apply func(set *types.ManifestSet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.state.Load()
	set := *current.set
	apply(&set)
	s.state.Store(&manifestState{set: &set, history: current.history})
}
