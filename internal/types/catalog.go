package types

import "time"

// PackageEntry is the metadata of one published package revision. Once
// part of a catalog version it is never edited; a newer revision is
// published under the same name with a different version.
type PackageEntry struct {
	Name        string        `yaml:"name" json:"name"`
	Version     string        `yaml:"version" json:"version"`
	Scheme      VersionScheme `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	Requires    []string      `yaml:"requires,omitempty" json:"requires,omitempty"`
	Conflicts   []string      `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
	Catalogs    []string      `yaml:"catalogs,omitempty" json:"catalogs,omitempty"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Inactive    bool          `yaml:"inactive,omitempty" json:"inactive,omitempty"`
}

// Key identifies an entry inside a catalog.
func (e PackageEntry) Key() string {
	return e.Name + "@" + e.Version
}

// Catalog is an immutable snapshot of one published catalog version.
type Catalog struct {
	Name        string         `yaml:"name" json:"name"`
	Version     int            `yaml:"version" json:"version"`
	PublishedAt time.Time      `yaml:"published_at" json:"published_at"`
	Entries     []PackageEntry `yaml:"entries" json:"entries"`

	byName map[string][]int
}

// NewCatalog builds a catalog snapshot and its name index. The entries
// slice is owned by the returned catalog.
func NewCatalog(name string, version int, publishedAt time.Time, entries []PackageEntry) *Catalog {
	catalog := &Catalog{
		Name:        name,
		Version:     version,
		PublishedAt: publishedAt,
		Entries:     entries,
		byName:      map[string][]int{},
	}
	for idx, entry := range entries {
		catalog.byName[entry.Name] = append(catalog.byName[entry.Name], idx)
	}
	return catalog
}

// Active returns the active entries published under name, in publication
// order.
func (c *Catalog) Active(name string) []PackageEntry {
	if c == nil {
		return nil
	}
	var out []PackageEntry
	for _, idx := range c.indexes(name) {
		if c.Entries[idx].Inactive {
			continue
		}
		out = append(out, c.Entries[idx])
	}
	return out
}

// Lookup returns the entry with the exact name and version, active or not.
func (c *Catalog) Lookup(name string, version string) (PackageEntry, bool) {
	if c == nil {
		return PackageEntry{}, false
	}
	for _, idx := range c.indexes(name) {
		if c.Entries[idx].Version == version {
			return c.Entries[idx], true
		}
	}
	return PackageEntry{}, false
}

func (c *Catalog) indexes(name string) []int {
	if c.byName != nil {
		return c.byName[name]
	}
	var out []int
	for idx, entry := range c.Entries {
		if entry.Name == name {
			out = append(out, idx)
		}
	}
	return out
}

// CatalogSet is a point-in-time view of every catalog, keyed by name.
type CatalogSet map[string]*Catalog
