package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/codec"
	"fleet-manifests/internal/types"
)

var publishedAt = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func testCatalogs() types.CatalogSet {
	return types.CatalogSet{
		"testing": types.NewCatalog("testing", 4, publishedAt, []types.PackageEntry{
			{Name: "Firefox", Version: "121.0"},
			{Name: "Chrome", Version: "120.1"},
			{Name: "X", Version: "1"},
			{Name: "X", Version: "2"},
		}),
		"stable": types.NewCatalog("stable", 9, publishedAt, []types.PackageEntry{
			{Name: "Firefox", Version: "120.0"},
			{Name: "Firefox", Version: "119.0"},
			{Name: "Chrome", Version: "119.0"},
			{Name: "Python", Version: "3.11"},
			{Name: "Python", Version: "3.12"},
			{Name: "Ansible", Version: "9.0", Requires: []string{"Python>=3.10", "Jinja"}},
			{Name: "Jinja", Version: "3.1", Requires: []string{"Python"}},
			{Name: "P", Version: "1.0", Conflicts: []string{"Q"}},
			{Name: "Q", Version: "1.0"},
			{Name: "Old", Version: "1.0", Inactive: true},
			{Name: "Munki", Version: "6.4"},
		}),
	}
}

func manifestSet(manifests ...types.Manifest) *types.ManifestSet {
	set := &types.ManifestSet{Manifests: map[string]types.Manifest{}, Aliases: map[string]types.Alias{}}
	for _, manifest := range manifests {
		if manifest.Version == 0 {
			manifest.Version = 1
		}
		set.Manifests[manifest.Name] = manifest
	}
	return set
}

func refs(names ...string) []types.PackageRef {
	out := make([]types.PackageRef, 0, len(names))
	for _, name := range names {
		out = append(out, types.PackageRef{Name: name})
	}
	return out
}

func client(root string, attrs types.Attributes) types.ClientContext {
	return types.ClientContext{ClientID: "C02ABC", Attributes: attrs, RootManifest: root}
}

func planSummary(items []types.PlanItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, string(item.Action)+" "+item.Name+"="+item.Version)
	}
	return out
}

func TestResolverWalksIncludesBeforeOwnReferences(t *testing.T) {
	set := manifestSet(
		types.Manifest{
			Name:     "site_default",
			Catalogs: []string{"testing", "stable"},
			Includes: []types.Include{{Name: "browsers"}, {Name: "tools"}},
			Installs: refs("Munki"),
		},
		types.Manifest{Name: "browsers", Installs: refs("Firefox", "Chrome")},
		types.Manifest{Name: "tools", Catalogs: []string{"stable"}, Installs: refs("Firefox")},
	)

	result, err := NewManifestResolver().Resolve(t.Context(), client("site_default", nil), set, testCatalogs(), nil)
	require.NoError(t, err)

	// tools re-selects Firefox from its own stable scope; last occurrence wins.
	want := []string{
		"install Chrome=120.1",
		"install Firefox=120.0",
		"install Munki=6.4",
	}
	if diff := cmp.Diff(want, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"site_default": 1, "browsers": 1, "tools": 1}, result.Plan.ManifestVersions); diff != "" {
		t.Fatalf("unexpected manifest versions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"testing": 4, "stable": 9}, result.Plan.CatalogVersions); diff != "" {
		t.Fatalf("unexpected catalog versions (-want +got):\n%s", diff)
	}
	assert.Equal(t, "C02ABC", result.ClientID)
	assert.Len(t, result.Fingerprint, 64)
}

func TestResolverIncludedManifestOverridesIncluder(t *testing.T) {
	set := manifestSet(
		types.Manifest{
			Name:     "base",
			Catalogs: []string{"testing"},
			Includes: []types.Include{{Name: "override", Condition: `"eng" IN tags`}},
			Installs: refs("X==1"),
		},
		types.Manifest{Name: "override", Installs: refs("X==2")},
	)
	eng := types.Attributes{types.AttrTags: {"eng"}}

	result, err := NewManifestResolver().Resolve(t.Context(), client("base", eng), set, testCatalogs(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"install X=2"}, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}

	// without the include the base line stands
	result, err = NewManifestResolver().Resolve(t.Context(), client("base", types.Attributes{types.AttrTags: {"sales"}}), set, testCatalogs(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"install X=1"}, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestResolverOverridePrecedenceFollowsWalkOrder(t *testing.T) {
	// Deeper and later-entered manifests win; the winner keeps its own
	// position in the plan.
	set := manifestSet(
		types.Manifest{
			Name:     "root",
			Catalogs: []string{"testing"},
			Includes: []types.Include{{Name: "general"}, {Name: "specific"}},
			Installs: refs("X==1", "Firefox"),
		},
		types.Manifest{Name: "general", Includes: []types.Include{{Name: "leaf"}}, Installs: refs("X==1")},
		types.Manifest{Name: "leaf", Installs: refs("Chrome")},
		types.Manifest{Name: "specific", Installs: refs("X==2")},
	)
	result, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
	require.NoError(t, err)
	want := []string{"install Chrome=120.1", "install X=2", "install Firefox=121.0"}
	if diff := cmp.Diff(want, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}

	// within one manifest the later line wins
	set = manifestSet(types.Manifest{Name: "root", Catalogs: []string{"testing"}, Installs: refs("X==2", "X==1")})
	result, err = NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"install X=1"}, planSummary(result.Plan.Items))
}

func TestResolverConditionFiltering(t *testing.T) {
	set := manifestSet(
		types.Manifest{
			Name:     "root",
			Catalogs: []string{"stable"},
			Includes: []types.Include{
				{Name: "mavericks", Condition: `os_version < 10.10`},
				{Name: "yosemite", Condition: `os_version >= 10.10`},
			},
			Installs: []types.PackageRef{
				{Name: "Python", Condition: `"eng" IN tags`},
				{Name: "Chrome", Condition: `owner == "alice"`},
			},
		},
		types.Manifest{Name: "mavericks", Installs: refs("Firefox==119.0")},
		types.Manifest{Name: "yosemite", Installs: refs("Firefox")},
	)
	attrs := types.Attributes{
		types.AttrOSVersion: {"10.10.5"},
		types.AttrTags:      {"eng"},
	}
	result, err := NewManifestResolver().Resolve(t.Context(), client("root", attrs), set, testCatalogs(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"install Firefox=120.0", "install Python=3.12"}, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
	_, walkedMavericks := result.Plan.ManifestVersions["mavericks"]
	assert.False(t, walkedMavericks)
}

func TestResolverDeterministicEncoding(t *testing.T) {
	set := manifestSet(
		types.Manifest{
			Name:     "root",
			Catalogs: []string{"testing", "stable"},
			Includes: []types.Include{{Name: "child"}},
			Installs: refs("Ansible", "Firefox"),
		},
		types.Manifest{Name: "child", Installs: refs("Chrome", "X")},
	)
	prior := map[string]string{"Firefox": "121.0", "Slack": "4.0", "Zoom": "5.0"}
	first, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), prior)
	require.NoError(t, err)
	second, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), prior)
	require.NoError(t, err)

	a, err := codec.Marshal(first.Plan)
	require.NoError(t, err)
	b, err := codec.Marshal(second.Plan)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestResolverRequirementsPrecedeDependent(t *testing.T) {
	set := manifestSet(types.Manifest{
		Name:     "root",
		Catalogs: []string{"stable"},
		Installs: refs("Munki", "Ansible", "Python==3.12"),
	})
	result, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
	require.NoError(t, err)
	want := []string{
		"install Munki=6.4",
		"install Python=3.12",
		"install Jinja=3.1",
		"install Ansible=9.0",
	}
	if diff := cmp.Diff(want, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestResolverRequirementSelectedForRemovalIsConflict(t *testing.T) {
	set := manifestSet(types.Manifest{
		Name:       "root",
		Catalogs:   []string{"stable"},
		Installs:   refs("Ansible"),
		Uninstalls: refs("Python"),
	})
	_, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConflict))
	assert.ElementsMatch(t, []string{"Ansible", "Python"}, err.(*types.Error).Identifiers)
}

func TestResolverConflictDetectionEitherDirection(t *testing.T) {
	for _, order := range [][]string{{"P", "Q"}, {"Q", "P"}} {
		set := manifestSet(types.Manifest{
			Name:     "root",
			Catalogs: []string{"stable"},
			Installs: refs(order...),
		})
		_, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrConflict))
		assert.ElementsMatch(t, []string{"P", "Q"}, err.(*types.Error).Identifiers)
	}
}

func TestResolverRemovals(t *testing.T) {
	set := manifestSet(types.Manifest{
		Name:       "root",
		Catalogs:   []string{"stable"},
		Installs:   refs("Firefox"),
		Uninstalls: refs("Chrome"),
	})
	prior := map[string]string{"Firefox": "120.0", "Zoom": "5.0", "Slack": "4.0"}
	result, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), prior)
	require.NoError(t, err)
	want := []types.PlanItem{
		{Action: types.PlanActionInstall, Name: "Firefox", Version: "120.0", Catalog: "stable", Manifest: "root", AlreadyInstalled: true},
		{Action: types.PlanActionRemove, Name: "Chrome", Manifest: "root"},
		{Action: types.PlanActionRemove, Name: "Slack", Version: "4.0"},
		{Action: types.PlanActionRemove, Name: "Zoom", Version: "5.0"},
	}
	if diff := cmp.Diff(want, result.Plan.Items); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
	assert.Len(t, result.Installs(), 1)
	assert.Len(t, result.Removals(), 3)
}

func TestResolverErrors(t *testing.T) {
	tests := []struct {
		name     string
		set      *types.ManifestSet
		root     string
		sentinel error
	}{
		{
			name:     "missing root",
			set:      manifestSet(),
			root:     "nope",
			sentinel: types.ErrNotFound,
		},
		{
			name: "missing include",
			set: manifestSet(types.Manifest{
				Name: "root", Catalogs: []string{"stable"}, Includes: []types.Include{{Name: "ghost"}},
			}),
			root:     "root",
			sentinel: types.ErrNotFound,
		},
		{
			name:     "unknown scoped catalog",
			set:      manifestSet(types.Manifest{Name: "root", Catalogs: []string{"nightly"}}),
			root:     "root",
			sentinel: types.ErrNotFound,
		},
		{
			name: "unresolved reference",
			set: manifestSet(types.Manifest{
				Name: "root", Catalogs: []string{"stable"}, Installs: refs("Old"),
			}),
			root:     "root",
			sentinel: types.ErrUnresolvedReference,
		},
		{
			name: "qualified reference outside scope",
			set: manifestSet(types.Manifest{
				Name: "root", Catalogs: []string{"stable"}, Installs: refs("testing/Firefox"),
			}),
			root:     "root",
			sentinel: types.ErrScope,
		},
		{
			name: "cycle slipped past the store",
			set: manifestSet(
				types.Manifest{Name: "root", Catalogs: []string{"stable"}, Includes: []types.Include{{Name: "a"}}},
				types.Manifest{Name: "a", Includes: []types.Include{{Name: "root"}}},
			),
			root:     "root",
			sentinel: types.ErrCycle,
		},
		{
			name: "bad condition",
			set: manifestSet(types.Manifest{
				Name: "root", Catalogs: []string{"stable"},
				Installs: []types.PackageRef{{Name: "Firefox", Condition: "site ="}},
			}),
			root:     "root",
			sentinel: types.ErrValidation,
		},
		{
			name:     "no root assigned",
			set:      manifestSet(),
			root:     "",
			sentinel: types.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManifestResolver().Resolve(t.Context(), client(tt.root, nil), tt.set, testCatalogs(), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), err.Error())
		})
	}
}

func TestResolverQualifiedReferenceInScope(t *testing.T) {
	set := manifestSet(types.Manifest{
		Name:     "root",
		Catalogs: []string{"stable", "testing"},
		Installs: refs("testing/Firefox", "Chrome"),
	})
	result, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"install Firefox=121.0", "install Chrome=119.0"}, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestResolverAliasesAndModifications(t *testing.T) {
	set := manifestSet(types.Manifest{
		Name:     "root",
		Catalogs: []string{"stable"},
		Installs: refs("browser", "Chrome", "off"),
	})
	set.Aliases["browser"] = types.Alias{Name: "browser", Target: "Firefox", Enabled: true}
	set.Aliases["off"] = types.Alias{Name: "off", Target: "Chrome", Enabled: false}
	set.Modifications = []types.Modification{
		{Type: types.ModificationSite, Target: "NYC", Value: "Python", Enabled: true},
		{Type: types.ModificationTag, Target: "kiosk", Value: "-Chrome", Enabled: true},
	}

	// "off" is a disabled alias, so it is looked up verbatim and fails.
	_, err := NewManifestResolver().Resolve(t.Context(), client("root", nil), set, testCatalogs(), nil)
	require.True(t, errors.Is(err, types.ErrUnresolvedReference))

	set.Manifests["root"] = types.Manifest{Name: "root", Version: 2, Catalogs: []string{"stable"}, Installs: refs("browser", "Chrome")}
	attrs := types.Attributes{types.AttrSite: {"NYC"}, types.AttrTags: {"kiosk"}}
	result, err := NewManifestResolver().Resolve(t.Context(), client("root", attrs), set, testCatalogs(), map[string]string{"Chrome": "119.0"})
	require.NoError(t, err)
	want := []string{
		"install Firefox=120.0",
		"install Python=3.12",
		"remove Chrome=119.0",
	}
	if diff := cmp.Diff(want, planSummary(result.Plan.Items)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestResolverEmptyManifest(t *testing.T) {
	set := manifestSet(types.Manifest{Name: "empty"})
	result, err := NewManifestResolver().Resolve(t.Context(), client("empty", nil), set, testCatalogs(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Plan.Items)
	assert.NotEmpty(t, result.Fingerprint)
}
