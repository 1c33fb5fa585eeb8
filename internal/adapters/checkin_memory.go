package adapters

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/core"
	"fleet-manifests/internal/types"
)

// MemoryCheckinTracker keeps check-in history in process memory. Each
// client has its own lock; the client table lock is only held to find it.
type MemoryCheckinTracker struct {
	mu      sync.Mutex
	clients map[string]*clientHistory
	clock   func() time.Time
}

type clientHistory struct {
	mu      sync.Mutex
	records []types.CheckinRecord
}

func NewMemoryCheckinTracker(clock func() time.Time) *MemoryCheckinTracker {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCheckinTracker{clients: map[string]*clientHistory{}, clock: clock}
}

func (t *MemoryCheckinTracker) history(clientID string, create bool) *clientHistory {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.clients[clientID]
	if !ok && create {
		h = &clientHistory{}
		t.clients[clientID] = h
	}
	return h
}

func (t *MemoryCheckinTracker) RecordResolution(ctx context.Context, clientID string, result types.ResolutionResult) (types.CheckinRecord, error) {
	if clientID == "" {
		return types.CheckinRecord{}, types.NewError(types.KindValidation, "client id is required")
	}
	h := t.history(clientID, true)
	h.mu.Lock()
	defer h.mu.Unlock()

	var prev *types.CheckinRecord
	if len(h.records) > 0 {
		prev = &h.records[len(h.records)-1]
	}
	record := core.NewCheckinRecord(prev, clientID, result, t.clock().UTC())
	if err := ctx.Err(); err != nil {
		return types.CheckinRecord{}, err
	}
	h.records = append(h.records, record)
	log.Ctx(ctx).Debug().
		Str("client_id", clientID).
		Str("resolution_id", result.ID).
		Int64("seq", record.Seq).
		Msg("resolution recorded")
	return copyRecord(record), nil
}

func (t *MemoryCheckinTracker) RecordOutcome(ctx context.Context, clientID string, resolutionID string, reports []types.OutcomeReport) (types.CheckinRecord, error) {
	h := t.history(clientID, false)
	if h == nil {
		return types.CheckinRecord{}, clientNotFound(clientID)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return types.CheckinRecord{}, clientNotFound(clientID)
	}

	current := h.records[len(h.records)-1]
	if err := core.CheckCurrent(current, resolutionID); err != nil {
		return types.CheckinRecord{}, err
	}
	outcomes, err := core.PrepareOutcomes(current.Result, reports, t.clock().UTC())
	if err != nil {
		return types.CheckinRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.CheckinRecord{}, err
	}

	updated := copyRecord(current)
	updated.Outcomes = append(updated.Outcomes, outcomes...)
	core.ApplyOutcomes(updated.Installed, outcomes)
	h.records[len(h.records)-1] = updated
	return copyRecord(updated), nil
}

func (t *MemoryCheckinTracker) Current(ctx context.Context, clientID string) (types.CheckinRecord, error) {
	h := t.history(clientID, false)
	if h == nil {
		return types.CheckinRecord{}, clientNotFound(clientID)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return types.CheckinRecord{}, clientNotFound(clientID)
	}
	return copyRecord(h.records[len(h.records)-1]), nil
}

func (t *MemoryCheckinTracker) GetDrift(ctx context.Context, clientID string) ([]string, error) {
	record, err := t.Current(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return core.Drift(record), nil
}

func (t *MemoryCheckinTracker) Clients(ctx context.Context) ([]types.ClientSummary, error) {
	t.mu.Lock()
	ids := make([]string, 0, len(t.clients))
	for id := range t.clients {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)

	out := make([]types.ClientSummary, 0, len(ids))
	for _, id := range ids {
		record, err := t.Current(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, types.ClientSummary{
			ClientID:     id,
			ResolutionID: record.ResolutionID(),
			LastCheckin:  lastActivity(record),
		})
	}
	return out, nil
}

// lastActivity is the newest of the record time and its outcome times.
func lastActivity(record types.CheckinRecord) time.Time {
	last := record.RecordedAt
	for _, outcome := range record.Outcomes {
		if outcome.ReportedAt.After(last) {
			last = outcome.ReportedAt
		}
	}
	return last
}

func copyRecord(record types.CheckinRecord) types.CheckinRecord {
	record.Installed = maps.Clone(record.Installed)
	if record.Installed == nil {
		record.Installed = map[string]string{}
	}
	record.Outcomes = slices.Clone(record.Outcomes)
	return record
}

func clientNotFound(clientID string) error {
	return types.NewError(types.KindNotFound, fmt.Sprintf("client %s has no check-in records", clientID), clientID)
}
