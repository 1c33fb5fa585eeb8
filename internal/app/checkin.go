package app

import (
	"context"
	"errors"
	"strings"

	"fleet-manifests/internal/types"
)

// CheckIn resolves the client and records the result as its current
// resolution, unless the client already holds an identical plan.
func (s Service) CheckIn(ctx context.Context, req CheckinRequest) (CheckinResult, error) {
	resolveReq := req.ResolveRequest
	resolveReq.Record = false
	result, err := s.Resolve(ctx, resolveReq)
	if err != nil {
		return CheckinResult{}, err
	}

	known := strings.Trim(strings.TrimSpace(req.KnownFingerprint), `"`)
	if known != "" && known == result.Fingerprint {
		current, err := s.Checkins.Current(ctx, result.ClientID)
		switch {
		case err == nil && current.Result.Fingerprint == result.Fingerprint:
			return CheckinResult{Result: current.Result, Unchanged: true}, nil
		case err != nil && !errors.Is(err, types.ErrNotFound):
			return CheckinResult{}, err
		}
	}

	if _, err := s.Checkins.RecordResolution(ctx, result.ClientID, result); err != nil {
		return CheckinResult{}, err
	}
	return CheckinResult{Result: result}, nil
}
