package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/types"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"validate", "resolve", "inspect", "serve", "drift"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestResolveCommandFlags(t *testing.T) {
	cmd := newResolveCommand()
	for _, name := range []string{"seed-dir", "client", "attr", "tag", "manifest", "output", "db", "record"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := newServeCommand()
	for _, name := range []string{"listen", "seed-dir", "db", "watch", "active-days", "protect-client"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestDriftCommandFlags(t *testing.T) {
	cmd := newDriftCommand()
	assert.NotNil(t, cmd.Flags().Lookup("db"))
	assert.NotNil(t, cmd.Flags().Lookup("client"))
	assert.NotNil(t, cmd.Flags().Lookup("active-days"))
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, resolveStrings(nil, []string{"a", "b"}, "test_key", "test-flag"))
	assert.Empty(t, resolveStrings(nil, nil, "test_key", "test-flag"))
}

func TestResolveBoolAndInt(t *testing.T) {
	assert.True(t, resolveBool(nil, true, "test_key", "test-flag"))
	assert.False(t, resolveBool(nil, false, "test_key", "test-flag"))
	assert.Equal(t, 42, resolveInt(nil, 42, "test_key", "test-flag"))

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("days", 30, "")
	assert.Equal(t, 30, resolveInt(cmd, 30, "unset_days_key", "days"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

func TestParseAttributes(t *testing.T) {
	attrs, err := parseAttributes([]string{"site=NYC", "os_version=14.2", "site=BOS"}, []string{"eng", " "})
	require.NoError(t, err)
	assert.Equal(t, types.Attributes{
		"site":       {"NYC", "BOS"},
		"os_version": {"14.2"},
		"tags":       {"eng"},
	}, attrs)

	_, err = parseAttributes([]string{"novalue"}, nil)
	require.Error(t, err)
	_, err = parseAttributes([]string{"=x"}, nil)
	require.Error(t, err)
}

func TestNewAppServiceFromConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("default_manifest", "fallback")
	viper.Set("assignments", []map[string]any{
		{"manifest": "kiosk", "matches": []string{"hostname:kiosk-*"}},
	})

	service, closeService, err := newAppService(serviceOptions{DBPath: filepath.Join(t.TempDir(), "checkins.db")})
	require.NoError(t, err)
	defer closeService()

	assert.Equal(t, "fallback", service.DefaultManifest)
	assert.Equal(t, "kiosk", service.AssignManifest(types.Attributes{"hostname": {"kiosk-07"}}))
	assert.Equal(t, "fallback", service.AssignManifest(types.Attributes{"hostname": {"mbp-1"}}))

	viper.Set("assignments", []map[string]any{{"manifest": "x", "matches": []string{"nope:*"}}})
	_, _, err = newAppService(serviceOptions{})
	require.Error(t, err)
}

func TestValidateAndResolveCommands(t *testing.T) {
	t.Cleanup(viper.Reset)
	seedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "seed.yaml"), []byte(`
kind: catalog
name: stable
entries:
  - {name: Firefox, version: "121.0"}
---
kind: manifest
name: site_default
manifest:
  catalogs: [stable]
  installs: [{name: Firefox}]
`), 0644))
	outDir := t.TempDir()

	root := newRootCommand()
	root.SetArgs([]string{"validate", "--seed-dir", seedDir})
	require.NoError(t, root.Execute())

	root = newRootCommand()
	root.SetArgs([]string{"resolve", "--seed-dir", seedDir, "--client", "C02ABC", "--output", outDir})
	require.NoError(t, root.Execute())
	assert.FileExists(t, filepath.Join(outDir, "plan.lock"))
	assert.FileExists(t, filepath.Join(outDir, "resolution.report"))

	root = newRootCommand()
	root.SetArgs([]string{"inspect", "--output", outDir})
	require.NoError(t, root.Execute())

	root = newRootCommand()
	root.SetArgs([]string{"drift"})
	require.Error(t, root.Execute())
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", types.NewError(types.KindValidation, "bad seed"), 2},
		{"cycle", types.NewError(types.KindCycle, "a -> b -> a", "a", "b"), 3},
		{"unresolved", types.NewError(types.KindUnresolvedReference, "ghost", "ghost"), 3},
		{"stale report", types.NewError(types.KindStaleResolution, "old", "res-1"), 4},
		{"missing manifest", types.NewError(types.KindNotFound, "no such manifest", "eng"), 5},
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("bad input"),
			expected: 2,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("nope"),
			expected: 3,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("boom"),
			expected: 5,
		},
		{"unknown error", assert.AnError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeForError(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("something broke")
	assert.Equal(t, "something broke", errorMessage(err))
	assert.Equal(t, assert.AnError.Error(), errorMessage(assert.AnError))
}
