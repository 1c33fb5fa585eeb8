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
	"fleet-manifests/internal/types"
)

// CatalogStore keeps every published version of every catalog in memory.
// Readers load an immutable state through one atomic pointer; publishers
// build the next state off to the side and swap it in under mu.
type CatalogStore struct {
	mu    sync.Mutex
	state atomic.Pointer[catalogState]
	clock func() time.Time
}

type catalogState struct {
	history map[string][]*types.Catalog
}

func NewCatalogStore(clock func() time.Time) *CatalogStore {
	if clock == nil {
		clock = time.Now
	}
	store := &CatalogStore{clock: clock}
	store.state.Store(&catalogState{history: map[string][]*types.Catalog{}})
	return store
}

func (s *CatalogStore) Get(ctx context.Context, name string, asOf time.Time) (*types.Catalog, error) {
	versions := s.state.Load().history[name]
	if len(versions) == 0 {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("catalog %s not found", name), name)
	}
	if asOf.IsZero() {
		return versions[len(versions)-1], nil
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].PublishedAt.After(asOf) {
			return versions[i], nil
		}
	}
	return nil, types.NewError(types.KindNotFound,
		fmt.Sprintf("catalog %s has no version published at or before %s", name, asOf.Format(time.RFC3339)), name)
}

func (s *CatalogStore) Snapshot() types.CatalogSet {
	state := s.state.Load()
	set := make(types.CatalogSet, len(state.history))
	for name, versions := range state.history {
		set[name] = versions[len(versions)-1]
	}
	return set
}

func (s *CatalogStore) Publish(ctx context.Context, name string, entries []types.PackageEntry) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return 0, types.NewError(types.KindValidation, fmt.Sprintf("invalid catalog name %q", name), name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state.Load()
	var previous *types.Catalog
	if versions := current.history[name]; len(versions) > 0 {
		previous = versions[len(versions)-1]
	}
	merged, err := mergeCatalogEntries(name, previous, entries)
	if err != nil {
		return 0, err
	}
	if err := core.CheckCatalog(ctx, name, merged); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	version := 1
	if previous != nil {
		version = previous.Version + 1
	}
	catalog := types.NewCatalog(name, version, s.clock().UTC(), merged)

	next := &catalogState{history: maps.Clone(current.history)}
	next.history[name] = append(slices.Clone(current.history[name]), catalog)
	s.state.Store(next)

	log.Ctx(ctx).Info().
		Str("catalog", name).
		Int("version", version).
		Int("entries", len(merged)).
		Msg("catalog published")
	return version, nil
}

// mergeCatalogEntries appends entries to the previous version's entries.
// A (name, version) pair already present must be identical; the only
// permitted change is marking it inactive.
func mergeCatalogEntries(catalog string, previous *types.Catalog, entries []types.PackageEntry) ([]types.PackageEntry, error) {
	var merged []types.PackageEntry
	index := map[string]int{}
	if previous != nil {
		merged = slices.Clone(previous.Entries)
		for idx, entry := range merged {
			index[entry.Key()] = idx
		}
	}
	for _, entry := range entries {
		entry = normalizeEntry(entry)
		idx, exists := index[entry.Key()]
		if !exists {
			index[entry.Key()] = len(merged)
			merged = append(merged, entry)
			continue
		}
		existing := merged[idx]
		if !sameEntryMetadata(existing, entry) {
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("catalog %s: %s is already published with different metadata", catalog, entry.Key()),
				entry.Key())
		}
		if existing.Inactive && !entry.Inactive {
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("catalog %s: %s is inactive and cannot be reactivated", catalog, entry.Key()),
				entry.Key())
		}
		merged[idx].Inactive = existing.Inactive || entry.Inactive
	}
	return merged, nil
}

func normalizeEntry(entry types.PackageEntry) types.PackageEntry {
	entry.Name = strings.TrimSpace(entry.Name)
	entry.Version = strings.TrimSpace(entry.Version)
	if entry.Scheme == "" {
		entry.Scheme = types.VersionSchemeDotted
	}
	entry.Requires = trimAll(entry.Requires)
	entry.Conflicts = trimAll(entry.Conflicts)
	return entry
}

func sameEntryMetadata(a types.PackageEntry, b types.PackageEntry) bool {
	return a.Scheme == b.Scheme &&
		a.Description == b.Description &&
		slices.Equal(a.Requires, b.Requires) &&
		slices.Equal(a.Conflicts, b.Conflicts)
}

func trimAll(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
