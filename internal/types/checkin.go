package types

import "time"

// PackageOutcome is what a client reported for one package of a plan.
type PackageOutcome struct {
	Name       string        `json:"name" cbor:"name"`
	Status     OutcomeStatus `json:"status" cbor:"status"`
	Version    string        `json:"version,omitempty" cbor:"version,omitempty"`
	Code       string        `json:"code,omitempty" cbor:"code,omitempty"`
	ReportedAt time.Time     `json:"reported_at" cbor:"reported_at"`
}

// CheckinRecord ties a resolution to a client and accumulates the
// client's reported outcomes. Installed is the client's last reported
// installed state (name -> version) as of this record.
type CheckinRecord struct {
	Seq        int64             `json:"seq" cbor:"seq"`
	ClientID   string            `json:"client_id" cbor:"client_id"`
	Result     ResolutionResult  `json:"result" cbor:"result"`
	RecordedAt time.Time         `json:"recorded_at" cbor:"recorded_at"`
	Outcomes   []PackageOutcome  `json:"outcomes,omitempty" cbor:"outcomes,omitempty"`
	Installed  map[string]string `json:"installed" cbor:"installed"`
}

// ResolutionID is the reference clients report against.
func (r CheckinRecord) ResolutionID() string {
	return r.Result.ID
}

// ClientSummary is the tracker's view of one client's current record.
type ClientSummary struct {
	ClientID     string    `json:"client_id"`
	ResolutionID string    `json:"resolution_id"`
	LastCheckin  time.Time `json:"last_checkin"`
}

// ClientDrift is one client's drift as reported by a sweep.
type ClientDrift struct {
	ClientID string   `json:"client_id"`
	Drift    []string `json:"drift"`
}

// OutcomeReport is one element of a client report before it is checked
// against the resolution. Either Status or Code is set; Code is the raw
// installer exit status.
type OutcomeReport struct {
	Name    string        `json:"name"`
	Status  OutcomeStatus `json:"status,omitempty"`
	Code    string        `json:"code,omitempty"`
	Version string        `json:"version,omitempty"`
}
