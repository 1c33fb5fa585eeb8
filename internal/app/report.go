package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/types"
)

// Report records a client's install outcomes against its current
// resolution.
func (s Service) Report(ctx context.Context, req ReportRequest) (types.CheckinRecord, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return types.CheckinRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("client id is required")
	}
	resolutionID := strings.TrimSpace(req.ResolutionID)
	if resolutionID == "" {
		return types.CheckinRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("resolution id is required")
	}
	record, err := s.Checkins.RecordOutcome(ctx, clientID, resolutionID, req.Outcomes)
	if err != nil {
		return types.CheckinRecord{}, err
	}
	log.Ctx(ctx).Info().
		Str("client_id", clientID).
		Str("resolution_id", resolutionID).
		Int("outcomes", len(req.Outcomes)).
		Msg("report recorded")
	return record, nil
}

// Drift lists the client's packages whose reported state differs from
// its current resolution.
func (s Service) Drift(ctx context.Context, clientID string) ([]string, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("client id is required")
	}
	return s.Checkins.GetDrift(ctx, clientID)
}

// SweepDrift computes drift for every active client. Inactive clients are
// listed but not inspected.
func (s Service) SweepDrift(ctx context.Context, req DriftSweepRequest) (DriftSweepResult, error) {
	clients, err := s.Checkins.Clients(ctx)
	if err != nil {
		return DriftSweepResult{}, err
	}
	plan := BuildActivityPlan(clients, req.Policy, s.now())
	result := DriftSweepResult{Inactive: plan.Inactive, Drift: []types.ClientDrift{}}
	for _, client := range plan.Active {
		if err := ctx.Err(); err != nil {
			return DriftSweepResult{}, err
		}
		drift, err := s.Checkins.GetDrift(ctx, client.ClientID)
		if err != nil {
			return DriftSweepResult{}, err
		}
		if len(drift) == 0 {
			continue
		}
		result.Drift = append(result.Drift, types.ClientDrift{ClientID: client.ClientID, Drift: drift})
	}
	log.Ctx(ctx).Info().
		Int("active", len(plan.Active)).
		Int("inactive", len(plan.Inactive)).
		Int("drifting", len(result.Drift)).
		Msg("drift sweep complete")
	return result, nil
}
