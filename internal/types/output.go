package types

// PlanLockEntry is one line of a written plan.lock file.
type PlanLockEntry struct {
	Action  PlanAction
	Package string
	Version string
}

// ResolutionReport is the metadata written next to plan.lock.
type ResolutionReport struct {
	ResolutionID     string         `yaml:"resolution_id"`
	ClientID         string         `yaml:"client_id"`
	RootManifest     string         `yaml:"root_manifest"`
	Fingerprint      string         `yaml:"fingerprint"`
	ResolvedAt       string         `yaml:"resolved_at"`
	ManifestVersions map[string]int `yaml:"manifest_versions"`
	CatalogVersions  map[string]int `yaml:"catalog_versions"`
}
