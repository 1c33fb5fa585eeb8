package types

import "time"

// Include names another manifest to walk, optionally guarded by a
// condition over client attributes.
type Include struct {
	Name      string `yaml:"name" json:"name"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// PackageRef is a manifest line referencing a package, optionally
// catalog-qualified and version-constrained ("testing/Firefox>=120").
type PackageRef struct {
	Name      string `yaml:"name" json:"name"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Manifest is a named node of the include tree. Catalogs lists the
// catalogs visible to its references in lookup order; an empty list
// inherits the including manifest's scope.
type Manifest struct {
	Name       string       `yaml:"name" json:"name"`
	Catalogs   []string     `yaml:"catalogs,omitempty" json:"catalogs,omitempty"`
	Includes   []Include    `yaml:"includes,omitempty" json:"includes,omitempty"`
	Installs   []PackageRef `yaml:"installs,omitempty" json:"installs,omitempty"`
	Uninstalls []PackageRef `yaml:"uninstalls,omitempty" json:"uninstalls,omitempty"`
	Version    int          `yaml:"version,omitempty" json:"version,omitempty"`
	UpdatedAt  time.Time    `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IncludeNames returns every included manifest name regardless of its
// condition.
func (m Manifest) IncludeNames() []string {
	names := make([]string, 0, len(m.Includes))
	for _, include := range m.Includes {
		names = append(names, include.Name)
	}
	return names
}

// Alias maps an alternative package name to a real one.
type Alias struct {
	Name    string `yaml:"name" json:"name"`
	Target  string `yaml:"target" json:"target"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// Modification adds (Value) or removes ("-" + Value) a package for every
// client whose attribute named by Type equals Target.
type Modification struct {
	Type      ModificationType `yaml:"type" json:"type"`
	Target    string           `yaml:"target" json:"target"`
	Value     string           `yaml:"value" json:"value"`
	Manifests []string         `yaml:"manifests,omitempty" json:"manifests,omitempty"`
	Enabled   bool             `yaml:"enabled" json:"enabled"`
}

// ManifestSet is a consistent point-in-time view of the manifest store.
type ManifestSet struct {
	Manifests     map[string]Manifest
	Aliases       map[string]Alias
	Modifications []Modification
}

// Manifest returns the named manifest from the set.
func (s *ManifestSet) Manifest(name string) (Manifest, bool) {
	if s == nil {
		return Manifest{}, false
	}
	manifest, ok := s.Manifests[name]
	return manifest, ok
}
