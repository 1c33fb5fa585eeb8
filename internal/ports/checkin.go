package ports

import (
	"context"

	"fleet-manifests/internal/types"
)

// CheckinPort tracks, per client, the resolutions served and the outcomes
// reported against them. History is append-only.
type CheckinPort interface {
	RecordResolution(ctx context.Context, clientID string, result types.ResolutionResult) (types.CheckinRecord, error)
	RecordOutcome(ctx context.Context, clientID string, resolutionID string, reports []types.OutcomeReport) (types.CheckinRecord, error)
	Current(ctx context.Context, clientID string) (types.CheckinRecord, error)
	GetDrift(ctx context.Context, clientID string) ([]string, error)
	Clients(ctx context.Context) ([]types.ClientSummary, error)
}
