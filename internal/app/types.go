package app

import "fleet-manifests/internal/types"

type SeedRequest struct {
	Dir string
}

type SeedResult struct {
	Catalogs        []CatalogSummary
	Manifests       int
	Aliases         int
	Modifications   int
	MissingIncludes []string
}

type CatalogSummary struct {
	Name    string
	Version int
	Entries int
	Active  int
}

type ValidateRequest struct {
	SeedDir string
}

type ValidateResult = SeedResult

type ResolveRequest struct {
	ClientID   string
	Attributes types.Attributes
	// Manifest overrides root manifest assignment when set.
	Manifest string
	// Record stores the resolution as the client's current check-in.
	Record bool
}

type ExportRequest struct {
	OutputDir string
	Result    types.ResolutionResult
}

type ReportRequest struct {
	ClientID     string
	ResolutionID string
	Outcomes     []types.OutcomeReport
}

type DriftSweepRequest struct {
	Policy types.ActivityPolicy
}

type DriftSweepResult struct {
	Drift    []types.ClientDrift
	Inactive []types.ClientSummary
}

type InspectRequest struct {
	OutputDir string
}

type InspectResult struct {
	Report   types.ResolutionReport
	Installs []types.PlanLockEntry
	Removals []types.PlanLockEntry
}

type CheckinRequest struct {
	ResolveRequest
	// KnownFingerprint is the fingerprint of the plan the client holds.
	KnownFingerprint string
}

type CheckinResult struct {
	Result types.ResolutionResult
	// Unchanged is set when the client already holds this plan as its
	// current resolution; nothing new was recorded.
	Unchanged bool
}
