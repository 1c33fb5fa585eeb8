package ports

import "fleet-manifests/internal/types"

type PlanReaderPort interface {
	ReadPlanLock(path string) ([]types.PlanLockEntry, error)
	ReadResolutionReport(path string) (types.ResolutionReport, error)
}
