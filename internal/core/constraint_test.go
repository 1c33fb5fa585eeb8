package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/types"
)

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		raw     string
		op      types.ConstraintOp
		name    string
		version string
	}{
		{"Firefox=1.2.3", types.ConstraintOpEq, "Firefox", "1.2.3"},
		{"Firefox==1.2.3", types.ConstraintOpEq2, "Firefox", "1.2.3"},
		{"Firefox>=1.2.3", types.ConstraintOpGte, "Firefox", "1.2.3"},
		{"Firefox<=1.2.3", types.ConstraintOpLte, "Firefox", "1.2.3"},
		{"Firefox>1.2.3", types.ConstraintOpGt, "Firefox", "1.2.3"},
		{"Firefox<1.2.3", types.ConstraintOpLt, "Firefox", "1.2.3"},
		{"Firefox!=1.2.3", types.ConstraintOpNe, "Firefox", "1.2.3"},
		{"Firefox~=1.2.3", types.ConstraintOpCompat, "Firefox", "1.2.3"},
		{"Firefox", types.ConstraintOpNone, "Firefox", ""},
		{" Google Chrome >= 120 ", types.ConstraintOpGte, "Google Chrome", "120"},
	}

	for _, tt := range tests {
		constraint, err := ParseConstraint(tt.raw, "test")
		require.NoError(t, err)
		if diff := cmp.Diff(tt.op, constraint.Op); diff != "" {
			t.Fatalf("unexpected op (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(tt.name, constraint.Name); diff != "" {
			t.Fatalf("unexpected name (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(tt.version, constraint.Version); diff != "" {
			t.Fatalf("unexpected version (-want +got):\n%s", diff)
		}
	}
}

func TestParseConstraintRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", ">=1.0", "Firefox>="} {
		_, err := ParseConstraint(raw, "test")
		require.Error(t, err, raw)
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("testing/Firefox>=120.0", "site_default")
	require.NoError(t, err)
	want := types.PackageReference{
		Raw:     "testing/Firefox>=120.0",
		Catalog: "testing",
		Name:    "Firefox",
		Constraint: types.Constraint{
			Name:    "Firefox",
			Op:      types.ConstraintOpGte,
			Version: "120.0",
			Source:  "site_default",
		},
	}
	if diff := cmp.Diff(want, ref); diff != "" {
		t.Fatalf("unexpected reference (-want +got):\n%s", diff)
	}

	bare, err := ParseReference("Munki Tools", "site_default")
	require.NoError(t, err)
	require.Empty(t, bare.Catalog)
	require.Equal(t, "Munki Tools", bare.Name)

	for _, raw := range []string{"/Firefox", "testing/", "a/b/c"} {
		_, err := ParseReference(raw, "site_default")
		require.Error(t, err, raw)
	}
}

func TestParseRequirementRejectsQualified(t *testing.T) {
	_, err := ParseRequirement("stable/Python>=3", "Tool@1")
	require.Error(t, err)

	constraint, err := ParseRequirement("Python>=3", "Tool@1")
	require.NoError(t, err)
	require.Equal(t, "Python", constraint.Name)
}
