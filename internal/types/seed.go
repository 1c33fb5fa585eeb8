package types

// SeedDocument is one YAML document of a seed directory. Exactly one of
// the kind-specific sections is populated, selected by Kind.
type SeedDocument struct {
	Kind          SeedKind       `yaml:"kind"`
	Name          string         `yaml:"name,omitempty"`
	Entries       []PackageEntry `yaml:"entries,omitempty"`
	Manifest      *Manifest      `yaml:"manifest,omitempty"`
	Aliases       []Alias        `yaml:"aliases,omitempty"`
	Modifications []Modification `yaml:"modifications,omitempty"`
}

// Seed is the decoded content of a seed directory, in load order.
type Seed struct {
	Catalogs      []SeedCatalog
	Manifests     []Manifest
	Aliases       []Alias
	Modifications []Modification
}

// SeedCatalog is one catalog publication from a seed file.
type SeedCatalog struct {
	Name    string
	Source  string
	Entries []PackageEntry
}
