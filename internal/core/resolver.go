package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/codec"
	"fleet-manifests/internal/types"
)

// ManifestResolver turns a client's root manifest into an install/remove
// plan. It holds no state; every call works on the snapshots it is given.
type ManifestResolver struct{}

func NewManifestResolver() ManifestResolver {
	return ManifestResolver{}
}

// selection is one package chosen while walking the include tree.
type selection struct {
	action   types.PlanAction
	name     string
	entry    types.PackageEntry
	catalog  string
	manifest string
	scope    []string
	// rank is the pre-order index of the manifest visit that chose it.
	rank     int
	dead     bool
}

// resolution is the per-call working state of Resolve.
type resolution struct {
	ctx       context.Context
	client    types.ClientContext
	manifests *types.ManifestSet
	catalogs  types.CatalogSet
	conds     conditionCache

	path             []string
	visits           int
	manifestVersions map[string]int
	catalogVersions  map[string]int
	order            []*selection
	latest           map[string]*selection
}

// Resolve walks client.RootManifest depth-first and returns the plan for
// the client. prior is the client's last reported installed state
// (identifier -> version); it may be nil. The result carries no id or
// timestamp; the caller assigns them.
func (r ManifestResolver) Resolve(
	ctx context.Context,
	client types.ClientContext,
	manifests *types.ManifestSet,
	catalogs types.CatalogSet,
	prior map[string]string,
) (types.ResolutionResult, error) {
	root := strings.TrimSpace(client.RootManifest)
	if root == "" {
		return types.ResolutionResult{}, types.NewError(types.KindValidation,
			fmt.Sprintf("client %s has no root manifest", client.ClientID), client.ClientID)
	}
	state := &resolution{
		ctx:              ctx,
		client:           client,
		manifests:        manifests,
		catalogs:         catalogs,
		conds:            conditionCache{},
		manifestVersions: map[string]int{},
		catalogVersions:  map[string]int{},
		latest:           map[string]*selection{},
	}

	if err := state.walk(root, nil, ""); err != nil {
		return types.ResolutionResult{}, err
	}
	if err := state.applyModifications(root); err != nil {
		return types.ResolutionResult{}, err
	}
	installs, removes, err := state.expand()
	if err != nil {
		return types.ResolutionResult{}, err
	}
	if err := checkConflicts(installs); err != nil {
		return types.ResolutionResult{}, err
	}

	plan := types.Plan{
		RootManifest:     root,
		Items:            buildPlanItems(installs, removes, prior),
		ManifestVersions: state.manifestVersions,
		CatalogVersions:  state.catalogVersions,
	}
	fingerprint, err := codec.Fingerprint(plan)
	if err != nil {
		return types.ResolutionResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to fingerprint resolution").
			WithCause(err)
	}

	log.Ctx(ctx).Debug().
		Str("client_id", client.ClientID).
		Str("root_manifest", root).
		Int("manifests", len(plan.ManifestVersions)).
		Int("items", len(plan.Items)).
		Str("fingerprint", fingerprint).
		Msg("resolution complete")

	return types.ResolutionResult{
		ClientID:    client.ClientID,
		Plan:        plan,
		Fingerprint: fingerprint,
	}, nil
}

// walk visits one manifest: its includes first, then its own references.
// inherited is the scope of the including manifest. Each visit gets the
// next pre-order rank; a manifest entered later overrides one entered
// earlier even though its packages are emitted first.
func (r *resolution) walk(name string, inherited []string, includer string) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if slices.Contains(r.path, name) {
		return NewCycleError(append(slices.Clone(r.path), name))
	}
	manifest, ok := r.manifests.Manifest(name)
	if !ok {
		if includer == "" {
			return types.NewError(types.KindNotFound, fmt.Sprintf("root manifest %s not found", name), name)
		}
		return types.NewError(types.KindNotFound,
			fmt.Sprintf("manifest %s included by %s not found", name, includer), name, includer)
	}
	r.manifestVersions[name] = manifest.Version

	scope := inherited
	if len(manifest.Catalogs) > 0 {
		scope = manifest.Catalogs
		for _, catalog := range scope {
			if _, ok := r.catalogs[catalog]; !ok {
				return types.NewError(types.KindNotFound,
					fmt.Sprintf("catalog %s scoped by manifest %s not found", catalog, name), catalog, name)
			}
		}
	}

	r.path = append(r.path, name)
	defer func() { r.path = r.path[:len(r.path)-1] }()
	r.visits++
	rank := r.visits

	for _, include := range manifest.Includes {
		ok, err := r.holds(include.Condition)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := r.walk(include.Name, scope, name); err != nil {
			return err
		}
	}
	for _, ref := range manifest.Installs {
		ok, err := r.holds(ref.Condition)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		sel, err := r.lookup(ref.Name, scope, name)
		if err != nil {
			return err
		}
		sel.rank = rank
		r.choose(sel)
	}
	for _, ref := range manifest.Uninstalls {
		ok, err := r.holds(ref.Condition)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		parsed, err := r.reference(ref.Name, scope, name)
		if err != nil {
			return err
		}
		r.choose(&selection{action: types.PlanActionRemove, name: parsed.Name, manifest: name, scope: scope, rank: rank})
	}
	return nil
}

func (r *resolution) holds(text string) (bool, error) {
	cond, err := r.conds.get(text)
	if err != nil {
		return false, err
	}
	return cond.Evaluate(r.client.Attributes), nil
}

// choose records sel. Against an earlier selection of the same
// identifier the higher rank wins outright; within one manifest the
// later line wins.
func (r *resolution) choose(sel *selection) {
	if prev, ok := r.latest[sel.name]; ok {
		if prev.rank > sel.rank {
			return
		}
		prev.dead = true
	}
	r.order = append(r.order, sel)
	r.latest[sel.name] = sel
}

func (r *resolution) drop(name string) {
	if prev, ok := r.latest[name]; ok {
		prev.dead = true
		delete(r.latest, name)
	}
}

// reference parses a manifest line, substitutes an enabled alias and
// checks a catalog qualifier against scope.
func (r *resolution) reference(raw string, scope []string, manifest string) (types.PackageReference, error) {
	ref, err := ParseReference(raw, manifest)
	if err != nil {
		return types.PackageReference{}, types.WrapError(types.KindValidation,
			fmt.Sprintf("manifest %s: invalid reference %q", manifest, raw), err, raw, manifest)
	}
	if alias, ok := r.manifests.Aliases[ref.Name]; ok && alias.Enabled && strings.TrimSpace(alias.Target) != "" {
		ref.Name = alias.Target
		ref.Constraint.Name = alias.Target
	}
	if ref.Catalog != "" && !slices.Contains(scope, ref.Catalog) {
		return types.PackageReference{}, types.NewError(types.KindScope,
			fmt.Sprintf("manifest %s references %s outside its catalog scope [%s]", manifest, ref.Raw, strings.Join(scope, ", ")),
			ref.Raw, ref.Catalog, manifest)
	}
	return ref, nil
}

// lookup resolves an install reference against the in-scope catalogs.
func (r *resolution) lookup(raw string, scope []string, manifest string) (*selection, error) {
	ref, err := r.reference(raw, scope, manifest)
	if err != nil {
		return nil, err
	}
	search := scope
	if ref.Catalog != "" {
		search = []string{ref.Catalog}
	}
	entry, catalog, found, err := r.find(ref.Name, ref.Constraint, search)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, types.NewError(types.KindUnresolvedReference,
			fmt.Sprintf("%s referenced by manifest %s is not available in catalogs [%s]", ref.Raw, manifest, strings.Join(search, ", ")),
			ref.Name, manifest)
	}
	return &selection{
		action:   types.PlanActionInstall,
		name:     entry.Name,
		entry:    entry,
		catalog:  catalog,
		manifest: manifest,
		scope:    scope,
	}, nil
}

// find returns the highest satisfying active entry of the first catalog
// in search order that has one.
func (r *resolution) find(name string, constraint types.Constraint, search []string) (types.PackageEntry, string, bool, error) {
	var constraints []types.Constraint
	if constraint.Op != types.ConstraintOpNone {
		constraints = []types.Constraint{constraint}
	}
	for _, catalogName := range search {
		catalog := r.catalogs[catalogName]
		if catalog == nil {
			continue
		}
		entry, ok, err := bestEntry(catalog.Active(name), constraints)
		if err != nil {
			return types.PackageEntry{}, "", false, types.WrapError(types.KindValidation,
				fmt.Sprintf("cannot evaluate %s against catalog %s", name, catalogName), err, name, catalogName)
		}
		if ok {
			r.catalogVersions[catalogName] = catalog.Version
			return entry, catalogName, true, nil
		}
	}
	return types.PackageEntry{}, "", false, nil
}

// applyModifications adds or drops identifiers for the modifications
// targeting this client. Additions resolve in the root manifest's scope.
func (r *resolution) applyModifications(root string) error {
	effects := MatchModifications(r.manifests.Modifications, r.client.Attributes, root)
	if len(effects) == 0 {
		return nil
	}
	rootManifest, _ := r.manifests.Manifest(root)
	source := "modification:" + root
	rank := r.visits + 1
	for _, effect := range effects {
		if effect.Remove {
			ref, err := r.reference(effect.Name, rootManifest.Catalogs, source)
			if err != nil {
				return err
			}
			r.drop(ref.Name)
			continue
		}
		sel, err := r.lookup(effect.Name, rootManifest.Catalogs, source)
		if err != nil {
			return err
		}
		sel.rank = rank
		r.choose(sel)
	}
	return nil
}

// expand orders the surviving install selections with their transitive
// requirements placed immediately before their first dependent.
func (r *resolution) expand() ([]*selection, []*selection, error) {
	var selected, removes []*selection
	byName := map[string]*selection{}
	removed := map[string]bool{}
	for _, sel := range r.order {
		if sel.dead {
			continue
		}
		switch sel.action {
		case types.PlanActionInstall:
			selected = append(selected, sel)
			byName[sel.name] = sel
		case types.PlanActionRemove:
			removes = append(removes, sel)
			removed[sel.name] = true
		}
	}

	var emitted []*selection
	done := map[string]bool{}
	visiting := map[string]bool{}
	var emit func(sel *selection) error
	emit = func(sel *selection) error {
		if done[sel.name] || visiting[sel.name] {
			return nil
		}
		visiting[sel.name] = true
		for _, raw := range sel.entry.Requires {
			constraint, err := ParseRequirement(raw, sel.entry.Key())
			if err != nil {
				return types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: invalid requirement %q", sel.entry.Key(), raw), err, sel.entry.Key())
			}
			if removed[constraint.Name] {
				return types.NewError(types.KindConflict,
					fmt.Sprintf("%s requires %s which is selected for removal", sel.entry.Key(), constraint.Name),
					sel.name, constraint.Name)
			}
			dep, ok := byName[constraint.Name]
			if !ok {
				entry, catalog, found, err := r.find(constraint.Name, constraint, sel.scope)
				if err != nil {
					return err
				}
				if !found {
					return types.NewError(types.KindUnresolvedReference,
						fmt.Sprintf("%s requires %s which is not available in catalogs [%s]", sel.entry.Key(), raw, strings.Join(sel.scope, ", ")),
						constraint.Name, sel.name)
				}
				dep = &selection{
					action:   types.PlanActionInstall,
					name:     entry.Name,
					entry:    entry,
					catalog:  catalog,
					manifest: sel.manifest,
					scope:    sel.scope,
				}
				byName[constraint.Name] = dep
			} else if constraint.Op != types.ConstraintOpNone {
				ok, err := satisfiesConstraint(dep.entry, constraint)
				if err != nil {
					return types.WrapError(types.KindValidation,
						fmt.Sprintf("%s: cannot evaluate requirement %q", sel.entry.Key(), raw), err, sel.entry.Key())
				}
				if !ok {
					return types.NewError(types.KindConflict,
						fmt.Sprintf("%s requires %s but %s is selected", sel.entry.Key(), raw, dep.entry.Key()),
						sel.name, dep.name)
				}
			}
			if err := emit(dep); err != nil {
				return err
			}
		}
		delete(visiting, sel.name)
		done[sel.name] = true
		emitted = append(emitted, sel)
		return nil
	}
	for _, sel := range selected {
		if err := emit(sel); err != nil {
			return nil, nil, err
		}
	}
	return emitted, removes, nil
}

// checkConflicts rejects any pair of selected entries where either one
// declares a conflict matching the other.
func checkConflicts(installs []*selection) error {
	byName := make(map[string]*selection, len(installs))
	for _, sel := range installs {
		byName[sel.name] = sel
	}
	for _, sel := range installs {
		for _, raw := range sel.entry.Conflicts {
			constraint, err := ParseRequirement(raw, sel.entry.Key())
			if err != nil {
				return types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: invalid conflict %q", sel.entry.Key(), raw), err, sel.entry.Key())
			}
			other, ok := byName[constraint.Name]
			if !ok || other == sel {
				continue
			}
			matches, err := satisfiesConstraint(other.entry, constraint)
			if err != nil {
				return types.WrapError(types.KindValidation,
					fmt.Sprintf("%s: cannot evaluate conflict %q", sel.entry.Key(), raw), err, sel.entry.Key())
			}
			if matches {
				return types.NewError(types.KindConflict,
					fmt.Sprintf("%s conflicts with %s", sel.entry.Key(), other.entry.Key()),
					sel.name, other.name)
			}
		}
	}
	return nil
}

// buildPlanItems emits installs in dependency order followed by removals
// in identifier order. A removal is either an explicit uninstall or a
// previously installed identifier that is no longer selected.
func buildPlanItems(installs []*selection, removes []*selection, prior map[string]string) []types.PlanItem {
	items := make([]types.PlanItem, 0, len(installs)+len(removes))
	installed := map[string]bool{}
	for _, sel := range installs {
		installed[sel.name] = true
		items = append(items, types.PlanItem{
			Action:           types.PlanActionInstall,
			Name:             sel.name,
			Version:          sel.entry.Version,
			Catalog:          sel.catalog,
			Manifest:         sel.manifest,
			AlreadyInstalled: prior[sel.name] != "" && prior[sel.name] == sel.entry.Version,
		})
	}

	removals := map[string]types.PlanItem{}
	for _, sel := range removes {
		removals[sel.name] = types.PlanItem{
			Action:   types.PlanActionRemove,
			Name:     sel.name,
			Version:  prior[sel.name],
			Manifest: sel.manifest,
		}
	}
	for name, version := range prior {
		if installed[name] {
			continue
		}
		if _, ok := removals[name]; ok {
			continue
		}
		removals[name] = types.PlanItem{Action: types.PlanActionRemove, Name: name, Version: version}
	}
	names := make([]string, 0, len(removals))
	for name := range removals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		items = append(items, removals[name])
	}
	return items
}
