package types

// AssignmentRule sends every client whose attributes match one of Matches
// to Manifest. Patterns are "attr:value", "attr:prefix*" or "*".
type AssignmentRule struct {
	Manifest string   `yaml:"manifest" mapstructure:"manifest" json:"manifest"`
	Matches  []string `yaml:"matches" mapstructure:"matches" json:"matches"`
}
