package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crillab/gophersat/solver"

	"fleet-manifests/internal/types"
)

// catalogSolverState holds the SAT encoding of one catalog version: every
// active (name, version) pair is a variable.
type catalogSolverState struct {
	packageVars map[string][]int
	varEntry    map[int]types.PackageEntry
	requires    map[int][]types.Constraint
	conflicts   map[int][]types.Constraint
	caches      map[string]*versionCache
	varID       int
}

// CheckCatalog validates a complete catalog entry set. Every active entry
// must be installable together with the transitive closure of its
// requirements, with at most one version per identifier and no selected
// pair in conflict. The first failing entry is reported as a
// ValidationError naming it and the identifiers involved.
func CheckCatalog(ctx context.Context, catalog string, entries []types.PackageEntry) error {
	schemes, err := checkEntryShapes(catalog, entries)
	if err != nil {
		return err
	}
	state, err := buildCatalogSolverState(entries, schemes)
	if err != nil {
		return err
	}
	base, err := buildCatalogClauses(catalog, state)
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(state.varEntry))
	for id := range state.varEntry {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if len(state.requires[id]) == 0 {
			// nothing is forced; the entry alone is always satisfiable
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		clauses := append(append([][]int{}, base...), []int{id})
		sat := solver.New(solver.ParseSliceNb(clauses, state.varID))
		if sat.Solve() == solver.Sat {
			continue
		}
		entry := state.varEntry[id]
		involved := explainUnsat(state, id)
		return types.NewError(types.KindValidation,
			fmt.Sprintf("catalog %s: %s cannot be installed with its requirements (involves %s)",
				catalog, entry.Key(), strings.Join(involved, ", ")),
			append([]string{entry.Key()}, involved...)...)
	}
	return nil
}

// checkEntryShapes rejects structurally broken entries and returns the
// version scheme shared by all entries of each identifier.
func checkEntryShapes(catalog string, entries []types.PackageEntry) (map[string]types.VersionScheme, error) {
	schemes := map[string]types.VersionScheme{}
	seen := map[string]struct{}{}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" || strings.Contains(entry.Name, "/") {
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("catalog %s: invalid package name %q", catalog, entry.Name), entry.Name)
		}
		scheme := normalizeScheme(entry.Scheme)
		if prev, ok := schemes[entry.Name]; ok && prev != scheme {
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("catalog %s: %s mixes version schemes %s and %s", catalog, entry.Name, prev, scheme),
				entry.Name)
		}
		schemes[entry.Name] = scheme
		if err := newVersionCache(scheme).validVersion(entry.Version); err != nil {
			return nil, types.WrapError(types.KindValidation,
				fmt.Sprintf("catalog %s: invalid %s version %q for %s", catalog, scheme, entry.Version, entry.Name),
				err, entry.Key())
		}
		if _, dup := seen[entry.Key()]; dup {
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("catalog %s: duplicate entry %s", catalog, entry.Key()), entry.Key())
		}
		seen[entry.Key()] = struct{}{}
	}
	return schemes, nil
}

func buildCatalogSolverState(entries []types.PackageEntry, schemes map[string]types.VersionScheme) (catalogSolverState, error) {
	s := catalogSolverState{
		packageVars: map[string][]int{},
		varEntry:    map[int]types.PackageEntry{},
		requires:    map[int][]types.Constraint{},
		conflicts:   map[int][]types.Constraint{},
		caches:      map[string]*versionCache{},
	}
	for name, scheme := range schemes {
		s.caches[name] = newVersionCache(scheme)
	}
	for _, entry := range entries {
		if entry.Inactive {
			continue
		}
		s.varID++
		id := s.varID
		s.packageVars[entry.Name] = append(s.packageVars[entry.Name], id)
		s.varEntry[id] = entry
		for _, raw := range entry.Requires {
			constraint, err := ParseRequirement(raw, entry.Key())
			if err != nil {
				return s, types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: invalid requirement %q", entry.Key(), raw), err, entry.Key())
			}
			if constraint.Name == entry.Name {
				return s, types.NewError(types.KindValidation,
					fmt.Sprintf("%s requires itself", entry.Key()), entry.Key())
			}
			s.requires[id] = append(s.requires[id], constraint)
		}
		for _, raw := range entry.Conflicts {
			constraint, err := ParseRequirement(raw, entry.Key())
			if err != nil {
				return s, types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: invalid conflict %q", entry.Key(), raw), err, entry.Key())
			}
			s.conflicts[id] = append(s.conflicts[id], constraint)
		}
	}
	return s, nil
}

// buildCatalogClauses generates three kinds of SAT clauses:
//  1. At-most-one: only one version of each identifier can be selected.
//  2. Requirements: selecting a version implies one satisfying candidate
//     of each of its requirements.
//  3. Conflicts: a version and any candidate of its conflicts exclude each
//     other.
func buildCatalogClauses(catalog string, s catalogSolverState) ([][]int, error) {
	var clauses [][]int

	names := sortedKeys(s.packageVars)
	for _, name := range names {
		ids := s.packageVars[name]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				clauses = append(clauses, []int{-ids[i], -ids[j]})
			}
		}
	}

	for id := 1; id <= s.varID; id++ {
		entry := s.varEntry[id]
		for _, constraint := range s.requires[id] {
			if len(s.packageVars[constraint.Name]) == 0 {
				return nil, types.NewError(types.KindValidation,
					fmt.Sprintf("catalog %s: %s requires %s which has no active entry", catalog, entry.Key(), constraint.Name),
					entry.Key(), constraint.Name)
			}
			candidates, err := s.candidates(constraint)
			if err != nil {
				return nil, types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: invalid requirement %q", entry.Key(), constraint.Name), err, entry.Key())
			}
			clauses = append(clauses, append([]int{-id}, candidates...))
		}
		for _, constraint := range s.conflicts[id] {
			candidates, err := s.candidates(constraint)
			if err != nil {
				return nil, types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: invalid conflict %q", entry.Key(), constraint.Name), err, entry.Key())
			}
			for _, other := range candidates {
				if other == id {
					continue
				}
				clauses = append(clauses, []int{-id, -other})
			}
		}
	}
	return clauses, nil
}

// candidates returns the variables of the active versions satisfying the
// constraint.
func (s catalogSolverState) candidates(constraint types.Constraint) ([]int, error) {
	cache, ok := s.caches[constraint.Name]
	if !ok {
		return nil, nil
	}
	prepared, err := prepareConstraints([]types.Constraint{constraint}, cache)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, id := range s.packageVars[constraint.Name] {
		ok, err := satisfiesAll(s.varEntry[id].Version, prepared, cache)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return uniqueInts(out), nil
}

// explainUnsat names the identifiers in the requirement closure of root
// that are either unsatisfiable requirements or excluded by a conflict
// declared inside the closure.
func explainUnsat(s catalogSolverState, root int) []string {
	closure := map[string]struct{}{s.varEntry[root].Name: {}}
	queue := []int{root}
	seenVar := map[int]struct{}{root: {}}
	involved := map[string]struct{}{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, constraint := range s.requires[id] {
			closure[constraint.Name] = struct{}{}
			candidates, _ := s.candidates(constraint)
			if len(candidates) == 0 {
				involved[constraint.Name] = struct{}{}
			}
			for _, next := range candidates {
				if _, ok := seenVar[next]; ok {
					continue
				}
				seenVar[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	for id := range seenVar {
		for _, constraint := range s.conflicts[id] {
			if _, ok := closure[constraint.Name]; ok {
				involved[s.varEntry[id].Name] = struct{}{}
				involved[constraint.Name] = struct{}{}
			}
		}
	}
	if len(involved) == 0 {
		// version pinning within the closure made it unsatisfiable
		involved = closure
	}
	return sortedKeys(involved)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// uniqueInts deduplicates a slice of ints while preserving order.
func uniqueInts(values []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
