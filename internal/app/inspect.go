package app

import (
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/types"
)

// Inspect reads back the plan files written by Export.
func (s Service) Inspect(req InspectRequest) (InspectResult, error) {
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required")
	}
	entries, err := s.OutputReader.ReadPlanLock(filepath.Join(outputDir, adapters.PlanLockFile))
	if err != nil {
		return InspectResult{}, err
	}
	report, err := s.OutputReader.ReadResolutionReport(filepath.Join(outputDir, adapters.ResolutionReportFile))
	if err != nil {
		return InspectResult{}, err
	}
	result := InspectResult{Report: report}
	for _, entry := range entries {
		switch entry.Action {
		case types.PlanActionInstall:
			result.Installs = append(result.Installs, entry)
		case types.PlanActionRemove:
			result.Removals = append(result.Removals, entry)
		}
	}
	return result, nil
}
