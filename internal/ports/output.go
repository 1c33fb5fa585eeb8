package ports

import "fleet-manifests/internal/types"

type PlanWriterPort interface {
	WritePlanLock(result types.ResolutionResult) error
	WriteResolutionReport(report types.ResolutionReport) error
}
