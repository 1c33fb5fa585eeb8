package adapters

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

type OutputReaderAdapter struct{}

func NewOutputReaderAdapter() OutputReaderAdapter {
	return OutputReaderAdapter{}
}

func (a OutputReaderAdapter) ReadPlanLock(path string) ([]types.PlanLockEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("plan.lock not found").
			WithCause(err)
	}
	var entries []types.PlanLockEntry
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		action, rest, ok := strings.Cut(line, " ")
		if !ok {
			return nil, invalidPlanLine(i+1, line)
		}
		entry := types.PlanLockEntry{Action: types.PlanAction(action)}
		switch entry.Action {
		case types.PlanActionInstall, types.PlanActionRemove:
		default:
			return nil, invalidPlanLine(i+1, line)
		}
		name, version, _ := strings.Cut(strings.TrimSpace(rest), "=")
		entry.Package = strings.TrimSpace(name)
		entry.Version = strings.TrimSpace(version)
		if entry.Package == "" {
			return nil, invalidPlanLine(i+1, line)
		}
		if entry.Action == types.PlanActionInstall && entry.Version == "" {
			return nil, invalidPlanLine(i+1, line)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a OutputReaderAdapter) ReadResolutionReport(path string) (types.ResolutionReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.ResolutionReport{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("resolution.report not found").
			WithCause(err)
	}
	var report types.ResolutionReport
	if err := yaml.Unmarshal(content, &report); err != nil {
		return types.ResolutionReport{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse resolution.report").
			WithCause(err)
	}
	if strings.TrimSpace(report.ResolutionID) == "" {
		return types.ResolutionReport{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("resolution.report missing resolution_id")
	}
	return report, nil
}

func invalidPlanLine(line int, text string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid plan.lock line %d: %q", line, text))
}

var _ ports.PlanReaderPort = OutputReaderAdapter{}
