package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/types"
)

var reportedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleResult(id string) types.ResolutionResult {
	return types.ResolutionResult{
		ID:       id,
		ClientID: "C02ABC",
		Plan: types.Plan{
			RootManifest: "site_default",
			Items: []types.PlanItem{
				{Action: types.PlanActionInstall, Name: "Firefox", Version: "121.0"},
				{Action: types.PlanActionInstall, Name: "Chrome", Version: "120.1"},
				{Action: types.PlanActionRemove, Name: "Zoom", Version: "5.0"},
			},
		},
	}
}

func TestOutcomeFromStatus(t *testing.T) {
	assert.Equal(t, types.OutcomeInstalled, OutcomeFromStatus(types.PlanActionInstall, "0"))
	assert.Equal(t, types.OutcomeInstalled, OutcomeFromStatus(types.PlanActionInstall, " 20 "))
	assert.Equal(t, types.OutcomeRemoved, OutcomeFromStatus(types.PlanActionRemove, "0"))
	assert.Equal(t, types.OutcomeFailed, OutcomeFromStatus(types.PlanActionInstall, "1"))
	assert.Equal(t, types.OutcomeFailed, OutcomeFromStatus(types.PlanActionRemove, ""))
}

func TestNewCheckinRecordInheritsInstalledState(t *testing.T) {
	first := NewCheckinRecord(nil, "C02ABC", sampleResult("r1"), reportedAt)
	assert.Equal(t, int64(1), first.Seq)
	first.Installed["Firefox"] = "120.0"

	second := NewCheckinRecord(&first, "C02ABC", sampleResult("r2"), reportedAt)
	assert.Equal(t, int64(2), second.Seq)
	if diff := cmp.Diff(map[string]string{"Firefox": "120.0"}, second.Installed); diff != "" {
		t.Fatalf("unexpected installed state (-want +got):\n%s", diff)
	}

	// the copy is independent of the previous record
	second.Installed["Chrome"] = "120.1"
	assert.NotContains(t, first.Installed, "Chrome")
}

func TestCheckCurrent(t *testing.T) {
	record := NewCheckinRecord(nil, "C02ABC", sampleResult("r2"), reportedAt)
	require.NoError(t, CheckCurrent(record, "r2"))
	err := CheckCurrent(record, "r1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStaleResolution))
}

func TestPrepareOutcomes(t *testing.T) {
	outcomes, err := PrepareOutcomes(sampleResult("r1"), []types.OutcomeReport{
		{Name: "Firefox", Status: types.OutcomeInstalled},
		{Name: "Chrome", Code: "1"},
		{Name: "Zoom", Code: "0"},
	}, reportedAt)
	require.NoError(t, err)
	want := []types.PackageOutcome{
		{Name: "Firefox", Status: types.OutcomeInstalled, Version: "121.0", ReportedAt: reportedAt},
		{Name: "Chrome", Status: types.OutcomeFailed, Code: "1", ReportedAt: reportedAt},
		{Name: "Zoom", Status: types.OutcomeRemoved, Code: "0", ReportedAt: reportedAt},
	}
	if diff := cmp.Diff(want, outcomes); diff != "" {
		t.Fatalf("unexpected outcomes (-want +got):\n%s", diff)
	}
}

func TestPrepareOutcomesRejectsInvalid(t *testing.T) {
	for _, report := range []types.OutcomeReport{
		{Name: ""},
		{Name: "Firefox"},
		{Name: "Firefox", Status: "exploded"},
		{Name: "NotInPlan", Status: types.OutcomeInstalled},
	} {
		_, err := PrepareOutcomes(sampleResult("r1"), []types.OutcomeReport{report}, reportedAt)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrValidation))
	}
}

func TestDriftRoundTrip(t *testing.T) {
	record := NewCheckinRecord(nil, "C02ABC", sampleResult("r1"), reportedAt)
	record.Installed["Zoom"] = "5.0"
	if diff := cmp.Diff([]string{"Chrome", "Firefox", "Zoom"}, Drift(record)); diff != "" {
		t.Fatalf("unexpected drift (-want +got):\n%s", diff)
	}

	ApplyOutcomes(record.Installed, []types.PackageOutcome{
		{Name: "Firefox", Status: types.OutcomeInstalled, Version: "121.0"},
		{Name: "Chrome", Status: types.OutcomeFailed},
		{Name: "Zoom", Status: types.OutcomeRemoved},
	})
	if diff := cmp.Diff([]string{"Chrome"}, Drift(record)); diff != "" {
		t.Fatalf("unexpected drift (-want +got):\n%s", diff)
	}

	ApplyOutcomes(record.Installed, []types.PackageOutcome{
		{Name: "Chrome", Status: types.OutcomeInstalled, Version: "120.1"},
	})
	assert.Empty(t, Drift(record))
}
