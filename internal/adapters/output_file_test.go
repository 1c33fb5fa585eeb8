package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/types"
)

func TestPlanFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writer := NewOutputFileAdapter(dir)
	result := resultFor("r1", install("Python", "3.12.1"), install("Ansible", "9.0"), remove("Zoom"))

	require.NoError(t, writer.WritePlanLock(result))
	data, err := os.ReadFile(filepath.Join(dir, PlanLockFile))
	require.NoError(t, err)
	if diff := cmp.Diff("install Python=3.12.1\ninstall Ansible=9.0\nremove Zoom\n", string(data)); diff != "" {
		t.Fatalf("unexpected plan.lock (-want +got):\n%s", diff)
	}

	report := types.ResolutionReport{
		ResolutionID:     "r1",
		ClientID:         "C02ABC",
		RootManifest:     "site_default",
		Fingerprint:      "fp-r1",
		ResolvedAt:       "2026-02-01T08:00:00Z",
		ManifestVersions: map[string]int{"site_default": 3},
		CatalogVersions:  map[string]int{"stable": 7},
	}
	require.NoError(t, writer.WriteResolutionReport(report))

	reader := NewOutputReaderAdapter()
	entries, err := reader.ReadPlanLock(filepath.Join(dir, PlanLockFile))
	require.NoError(t, err)
	want := []types.PlanLockEntry{
		{Action: types.PlanActionInstall, Package: "Python", Version: "3.12.1"},
		{Action: types.PlanActionInstall, Package: "Ansible", Version: "9.0"},
		{Action: types.PlanActionRemove, Package: "Zoom"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("unexpected plan entries (-want +got):\n%s", diff)
	}

	got, err := reader.ReadResolutionReport(filepath.Join(dir, ResolutionReportFile))
	require.NoError(t, err)
	if diff := cmp.Diff(report, got); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
}

func TestReadPlanLockRejectsBadLines(t *testing.T) {
	for _, content := range []string{
		"upgrade Firefox=121.0\n",
		"install Firefox\n",
		"install\n",
		"install =1.0\n",
	} {
		path := filepath.Join(t.TempDir(), PlanLockFile)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err := NewOutputReaderAdapter().ReadPlanLock(path)
		assert.Error(t, err, content)
	}

	_, err := NewOutputReaderAdapter().ReadPlanLock(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestReadResolutionReportRequiresID(t *testing.T) {
	path := filepath.Join(t.TempDir(), ResolutionReportFile)
	require.NoError(t, os.WriteFile(path, []byte("client_id: C02ABC\n"), 0644))
	_, err := NewOutputReaderAdapter().ReadResolutionReport(path)
	require.Error(t, err)
}

func TestOutputFileAdapterNeedsDir(t *testing.T) {
	require.Error(t, NewOutputFileAdapter("").WritePlanLock(types.ResolutionResult{}))
}
