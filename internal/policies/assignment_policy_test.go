package policies

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/types"
)

func TestAssignmentPolicyFirstRuleWins(t *testing.T) {
	policy, err := NewAssignmentPolicy([]types.AssignmentRule{
		{Manifest: "lab", Matches: []string{"serial:C02LAB*"}},
		{Manifest: "nyc", Matches: []string{"site:NYC", "office:Manhattan"}},
		{Manifest: "eng", Matches: []string{"tags:eng"}},
		{Manifest: "everyone", Matches: []string{"*"}},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		attrs types.Attributes
		want  string
	}{
		{"prefix beats later exact", types.Attributes{"serial": {"C02LAB99"}, "site": {"NYC"}}, "lab"},
		{"exact site", types.Attributes{"serial": {"C02XYZ"}, "site": {"NYC"}}, "nyc"},
		{"second pattern of a rule", types.Attributes{"office": {"Manhattan"}}, "nyc"},
		{"tag membership", types.Attributes{"tags": {"design", "eng"}}, "eng"},
		{"wildcard fallback", types.Attributes{"site": {"SFO"}}, "everyone"},
		{"no attributes", types.Attributes{}, "everyone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := policy.Assign(tt.attrs)
			require.True(t, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected manifest (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssignmentPolicyNoMatch(t *testing.T) {
	policy, err := NewAssignmentPolicy([]types.AssignmentRule{{Manifest: "nyc", Matches: []string{"site:NYC"}}})
	require.NoError(t, err)
	_, ok := policy.Assign(types.Attributes{"site": {"SFO"}})
	assert.False(t, ok)

	empty, err := NewAssignmentPolicy(nil)
	require.NoError(t, err)
	_, ok = empty.Assign(types.Attributes{"site": {"NYC"}})
	assert.False(t, ok)
}

func TestAssignmentPolicyRejectsBadRules(t *testing.T) {
	for _, rule := range []types.AssignmentRule{
		{Manifest: "", Matches: []string{"*"}},
		{Manifest: "x", Matches: []string{"serial"}},
		{Manifest: "x", Matches: []string{"serial:"}},
		{Manifest: "x", Matches: []string{"shoe_size:42"}},
	} {
		_, err := NewAssignmentPolicy([]types.AssignmentRule{rule})
		assert.Error(t, err, rule)
	}
}
