package adapters

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"fleet-manifests/internal/codec"
	"fleet-manifests/internal/core"
	"fleet-manifests/internal/types"
)

const checkinSchema = `
CREATE TABLE IF NOT EXISTS checkins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    resolution_id TEXT NOT NULL,
    result BLOB NOT NULL,
    installed BLOB NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    UNIQUE (client_id, seq)
);

CREATE TABLE IF NOT EXISTS checkin_outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    checkin_id INTEGER NOT NULL,
    package TEXT NOT NULL,
    status TEXT NOT NULL,
    version TEXT,
    code TEXT,
    reported_at TIMESTAMP NOT NULL,
    FOREIGN KEY (checkin_id) REFERENCES checkins(id)
);

CREATE TABLE IF NOT EXISTS clients (
    client_id TEXT PRIMARY KEY,
    current_checkin INTEGER NOT NULL,
    last_checkin TIMESTAMP NOT NULL,
    FOREIGN KEY (current_checkin) REFERENCES checkins(id)
);

CREATE INDEX IF NOT EXISTS idx_checkins_client ON checkins(client_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_checkin ON checkin_outcomes(checkin_id);
`

// SQLiteCheckinTracker persists check-ins. checkins and checkin_outcomes
// are append-only; clients points at each client's current record.
type SQLiteCheckinTracker struct {
	db    *sql.DB
	clock func() time.Time
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NewSQLiteCheckinTracker opens (or creates) the database at path. Use
// ":memory:" for a throwaway database.
func NewSQLiteCheckinTracker(path string, clock func() time.Time) (*SQLiteCheckinTracker, error) {
	if clock == nil {
		clock = time.Now
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dbError("failed to open check-in database", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, dbError("failed to configure check-in database", err)
		}
	}
	if _, err := db.Exec(checkinSchema); err != nil {
		db.Close()
		return nil, dbError("failed to create check-in schema", err)
	}
	return &SQLiteCheckinTracker{db: db, clock: clock}, nil
}

func (t *SQLiteCheckinTracker) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *SQLiteCheckinTracker) RecordResolution(ctx context.Context, clientID string, result types.ResolutionResult) (types.CheckinRecord, error) {
	if clientID == "" {
		return types.CheckinRecord{}, types.NewError(types.KindValidation, "client id is required")
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return types.CheckinRecord{}, dbError("failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var prev *types.CheckinRecord
	current, _, err := loadCurrent(ctx, tx, clientID)
	switch {
	case err == nil:
		prev = &current
	case !errors.Is(err, types.ErrNotFound):
		return types.CheckinRecord{}, err
	}
	now := t.clock().UTC()
	record := core.NewCheckinRecord(prev, clientID, result, now)

	resultBlob, err := codec.Marshal(record.Result)
	if err != nil {
		return types.CheckinRecord{}, dbError("failed to encode resolution", err)
	}
	installedBlob, err := codec.Marshal(record.Installed)
	if err != nil {
		return types.CheckinRecord{}, dbError("failed to encode installed state", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO checkins (client_id, seq, resolution_id, result, installed, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, clientID, record.Seq, result.ID, resultBlob, installedBlob, now.Format(time.RFC3339Nano))
	if err != nil {
		return types.CheckinRecord{}, dbError("failed to insert check-in for "+clientID, err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return types.CheckinRecord{}, dbError("failed to read check-in id", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO clients (client_id, current_checkin, last_checkin) VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET current_checkin = excluded.current_checkin, last_checkin = excluded.last_checkin
	`, clientID, rowID, now.Format(time.RFC3339Nano)); err != nil {
		return types.CheckinRecord{}, dbError("failed to update client "+clientID, err)
	}
	if err := tx.Commit(); err != nil {
		return types.CheckinRecord{}, dbError("failed to commit check-in", err)
	}
	log.Ctx(ctx).Debug().
		Str("client_id", clientID).
		Str("resolution_id", result.ID).
		Int64("seq", record.Seq).
		Msg("resolution recorded")
	return record, nil
}

func (t *SQLiteCheckinTracker) RecordOutcome(ctx context.Context, clientID string, resolutionID string, reports []types.OutcomeReport) (types.CheckinRecord, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return types.CheckinRecord{}, dbError("failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	current, rowID, err := loadCurrent(ctx, tx, clientID)
	if err != nil {
		return types.CheckinRecord{}, err
	}
	if err := core.CheckCurrent(current, resolutionID); err != nil {
		return types.CheckinRecord{}, err
	}
	now := t.clock().UTC()
	outcomes, err := core.PrepareOutcomes(current.Result, reports, now)
	if err != nil {
		return types.CheckinRecord{}, err
	}
	for _, outcome := range outcomes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO checkin_outcomes (checkin_id, package, status, version, code, reported_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rowID, outcome.Name, string(outcome.Status), outcome.Version, outcome.Code, outcome.ReportedAt.Format(time.RFC3339Nano)); err != nil {
			return types.CheckinRecord{}, dbError("failed to insert outcome for "+outcome.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE clients SET last_checkin = ? WHERE client_id = ?`,
		now.Format(time.RFC3339Nano), clientID); err != nil {
		return types.CheckinRecord{}, dbError("failed to update client "+clientID, err)
	}
	if err := tx.Commit(); err != nil {
		return types.CheckinRecord{}, dbError("failed to commit outcomes", err)
	}
	current.Outcomes = append(current.Outcomes, outcomes...)
	core.ApplyOutcomes(current.Installed, outcomes)
	return current, nil
}

func (t *SQLiteCheckinTracker) Current(ctx context.Context, clientID string) (types.CheckinRecord, error) {
	record, _, err := loadCurrent(ctx, t.db, clientID)
	return record, err
}

func (t *SQLiteCheckinTracker) GetDrift(ctx context.Context, clientID string) ([]string, error) {
	record, err := t.Current(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return core.Drift(record), nil
}

func (t *SQLiteCheckinTracker) Clients(ctx context.Context) ([]types.ClientSummary, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT p.client_id, c.resolution_id, p.last_checkin
		FROM clients p
		JOIN checkins c ON c.id = p.current_checkin
		ORDER BY p.client_id
	`)
	if err != nil {
		return nil, dbError("failed to list clients", err)
	}
	defer rows.Close()

	var out []types.ClientSummary
	for rows.Next() {
		var summary types.ClientSummary
		var lastCheckin string
		if err := rows.Scan(&summary.ClientID, &summary.ResolutionID, &lastCheckin); err != nil {
			return nil, dbError("failed to scan client", err)
		}
		summary.LastCheckin = parseTimestamp(lastCheckin)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to list clients", err)
	}
	return out, nil
}

// loadCurrent reads the client's current record with its installed state
// rebuilt from the stored base state and the outcomes reported since.
func loadCurrent(ctx context.Context, q querier, clientID string) (types.CheckinRecord, int64, error) {
	var (
		rowID         int64
		record        types.CheckinRecord
		resultBlob    []byte
		installedBlob []byte
		recordedAt    string
	)
	err := q.QueryRowContext(ctx, `
		SELECT c.id, c.seq, c.result, c.installed, c.recorded_at
		FROM clients p
		JOIN checkins c ON c.id = p.current_checkin
		WHERE p.client_id = ?
	`, clientID).Scan(&rowID, &record.Seq, &resultBlob, &installedBlob, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CheckinRecord{}, 0, clientNotFound(clientID)
	}
	if err != nil {
		return types.CheckinRecord{}, 0, dbError("failed to load check-in for "+clientID, err)
	}
	record.ClientID = clientID
	record.RecordedAt = parseTimestamp(recordedAt)
	if err := codec.Unmarshal(resultBlob, &record.Result); err != nil {
		return types.CheckinRecord{}, 0, dbError("failed to decode resolution for "+clientID, err)
	}
	record.Installed = map[string]string{}
	if err := codec.Unmarshal(installedBlob, &record.Installed); err != nil {
		return types.CheckinRecord{}, 0, dbError("failed to decode installed state for "+clientID, err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT package, status, version, code, reported_at
		FROM checkin_outcomes
		WHERE checkin_id = ?
		ORDER BY id
	`, rowID)
	if err != nil {
		return types.CheckinRecord{}, 0, dbError("failed to load outcomes for "+clientID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome types.PackageOutcome
		var status, reportedAt string
		var version, code sql.NullString
		if err := rows.Scan(&outcome.Name, &status, &version, &code, &reportedAt); err != nil {
			return types.CheckinRecord{}, 0, dbError("failed to scan outcome", err)
		}
		outcome.Status = types.OutcomeStatus(status)
		outcome.Version = version.String
		outcome.Code = code.String
		outcome.ReportedAt = parseTimestamp(reportedAt)
		record.Outcomes = append(record.Outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return types.CheckinRecord{}, 0, dbError("failed to load outcomes for "+clientID, err)
	}
	core.ApplyOutcomes(record.Installed, record.Outcomes)
	return record, rowID, nil
}

func dbError(msg string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(err)
}
