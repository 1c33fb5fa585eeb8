package types

import "time"

// PlanItem is one (action, package) pair of a resolution.
type PlanItem struct {
	Action           PlanAction `json:"action" yaml:"action" cbor:"action"`
	Name             string     `json:"name" yaml:"name" cbor:"name"`
	Version          string     `json:"version,omitempty" yaml:"version,omitempty" cbor:"version,omitempty"`
	Catalog          string     `json:"catalog,omitempty" yaml:"catalog,omitempty" cbor:"catalog,omitempty"`
	Manifest         string     `json:"manifest,omitempty" yaml:"manifest,omitempty" cbor:"manifest,omitempty"`
	AlreadyInstalled bool       `json:"already_installed,omitempty" yaml:"already_installed,omitempty" cbor:"already_installed,omitempty"`
}

// Plan is the deterministic part of a resolution: for the same manifest
// snapshot, catalog snapshot, attributes and prior state it encodes to
// the same bytes.
type Plan struct {
	RootManifest     string         `json:"root_manifest" yaml:"root_manifest" cbor:"root_manifest"`
	Items            []PlanItem     `json:"items" yaml:"items" cbor:"items"`
	ManifestVersions map[string]int `json:"manifest_versions" yaml:"manifest_versions" cbor:"manifest_versions"`
	CatalogVersions  map[string]int `json:"catalog_versions" yaml:"catalog_versions" cbor:"catalog_versions"`
}

// ResolutionResult is an immutable snapshot of one resolution. A newer
// result supersedes it; it is never edited.
type ResolutionResult struct {
	ID          string    `json:"id" yaml:"id" cbor:"id"`
	ClientID    string    `json:"client_id" yaml:"client_id" cbor:"client_id"`
	Plan        Plan      `json:"plan" yaml:"plan" cbor:"plan"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint" cbor:"fingerprint"`
	ResolvedAt  time.Time `json:"resolved_at" yaml:"resolved_at" cbor:"resolved_at"`
}

// Installs returns the install items in plan order.
func (r ResolutionResult) Installs() []PlanItem {
	return r.itemsWith(PlanActionInstall)
}

// Removals returns the remove items in plan order.
func (r ResolutionResult) Removals() []PlanItem {
	return r.itemsWith(PlanActionRemove)
}

func (r ResolutionResult) itemsWith(action PlanAction) []PlanItem {
	var out []PlanItem
	for _, item := range r.Plan.Items {
		if item.Action == action {
			out = append(out, item)
		}
	}
	return out
}
