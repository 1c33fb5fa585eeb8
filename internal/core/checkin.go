package core

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"fleet-manifests/internal/types"
)

// successCodes are the installer exit statuses counted as success.
var successCodes = map[string]struct{}{
	"0":  {},
	"20": {},
}

// OutcomeFromStatus maps a raw installer status code to an outcome for a
// plan item with the given action.
func OutcomeFromStatus(action types.PlanAction, code string) types.OutcomeStatus {
	if _, ok := successCodes[strings.TrimSpace(code)]; !ok {
		return types.OutcomeFailed
	}
	if action == types.PlanActionRemove {
		return types.OutcomeRemoved
	}
	return types.OutcomeInstalled
}

// NewCheckinRecord starts a record for result. The installed state is
// inherited from prev when there is one.
func NewCheckinRecord(prev *types.CheckinRecord, clientID string, result types.ResolutionResult, now time.Time) types.CheckinRecord {
	record := types.CheckinRecord{
		ClientID:   clientID,
		Result:     result,
		RecordedAt: now,
		Installed:  map[string]string{},
	}
	if prev != nil {
		record.Seq = prev.Seq + 1
		maps.Copy(record.Installed, prev.Installed)
	} else {
		record.Seq = 1
	}
	return record
}

// CheckCurrent returns StaleResolutionError when resolutionID does not
// name the record's resolution.
func CheckCurrent(record types.CheckinRecord, resolutionID string) error {
	if record.ResolutionID() == resolutionID {
		return nil
	}
	return types.NewError(types.KindStaleResolution,
		fmt.Sprintf("client %s reported against %s but its current resolution is %s", record.ClientID, resolutionID, record.ResolutionID()),
		record.ClientID, resolutionID)
}

// PrepareOutcomes validates reports against the resolution and fills in
// statuses from raw codes and versions from the plan.
func PrepareOutcomes(result types.ResolutionResult, reports []types.OutcomeReport, now time.Time) ([]types.PackageOutcome, error) {
	items := map[string]types.PlanItem{}
	for _, item := range result.Plan.Items {
		items[item.Name] = item
	}
	out := make([]types.PackageOutcome, 0, len(reports))
	for _, report := range reports {
		name := strings.TrimSpace(report.Name)
		if name == "" {
			return nil, types.NewError(types.KindValidation, "outcome without package name", result.ID)
		}
		item, inPlan := items[name]
		status := report.Status
		if status == "" {
			if strings.TrimSpace(report.Code) == "" {
				return nil, types.NewError(types.KindValidation,
					fmt.Sprintf("outcome for %s has neither status nor code", name), name)
			}
			action := types.PlanActionInstall
			if inPlan {
				action = item.Action
			}
			status = OutcomeFromStatus(action, report.Code)
		}
		switch status {
		case types.OutcomeInstalled, types.OutcomeRemoved, types.OutcomeFailed:
		default:
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("outcome for %s has unknown status %q", name, status), name)
		}
		version := strings.TrimSpace(report.Version)
		if version == "" && status == types.OutcomeInstalled && inPlan {
			version = item.Version
		}
		if version == "" && status == types.OutcomeInstalled {
			return nil, types.NewError(types.KindValidation,
				fmt.Sprintf("installed outcome for %s needs a version", name), name)
		}
		out = append(out, types.PackageOutcome{
			Name:       name,
			Status:     status,
			Version:    version,
			Code:       strings.TrimSpace(report.Code),
			ReportedAt: now,
		})
	}
	return out, nil
}

// ApplyOutcomes updates installed in place: installed sets the version,
// removed clears it, failed leaves it unchanged.
func ApplyOutcomes(installed map[string]string, outcomes []types.PackageOutcome) {
	for _, outcome := range outcomes {
		switch outcome.Status {
		case types.OutcomeInstalled:
			installed[outcome.Name] = outcome.Version
		case types.OutcomeRemoved:
			delete(installed, outcome.Name)
		}
	}
}

// Drift lists, sorted, the install items whose installed version differs
// from the resolved one and the remove items that are still installed.
func Drift(record types.CheckinRecord) []string {
	seen := map[string]struct{}{}
	for _, item := range record.Result.Plan.Items {
		version, installed := record.Installed[item.Name]
		switch item.Action {
		case types.PlanActionInstall:
			if !installed || version != item.Version {
				seen[item.Name] = struct{}{}
			}
		case types.PlanActionRemove:
			if installed {
				seen[item.Name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
