package types

// VersionScheme selects how two versions of the same package identifier
// are ordered.
type VersionScheme string

const (
	// VersionSchemeDotted compares dot-separated components as integers,
	// the scheme used by OS versions and most Mac package versions.
	VersionSchemeDotted VersionScheme = "dotted"
	VersionSchemeDeb    VersionScheme = "deb"
	VersionSchemePep440 VersionScheme = "pep440"
)

type ConstraintOp string

const (
	ConstraintOpNone   ConstraintOp = ""
	ConstraintOpEq     ConstraintOp = "="
	ConstraintOpEq2    ConstraintOp = "=="
	ConstraintOpNe     ConstraintOp = "!="
	ConstraintOpCompat ConstraintOp = "~="
	ConstraintOpGte    ConstraintOp = ">="
	ConstraintOpLte    ConstraintOp = "<="
	ConstraintOpGt     ConstraintOp = ">"
	ConstraintOpLt     ConstraintOp = "<"
)

type PlanAction string

const (
	PlanActionInstall PlanAction = "install"
	PlanActionRemove  PlanAction = "remove"
)

type OutcomeStatus string

const (
	OutcomeInstalled OutcomeStatus = "installed"
	OutcomeRemoved   OutcomeStatus = "removed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// ModificationType names the client attribute a manifest modification
// is keyed on.
type ModificationType string

const (
	ModificationSite      ModificationType = "site"
	ModificationOSVersion ModificationType = "os_version"
	ModificationOwner     ModificationType = "owner"
	ModificationUUID      ModificationType = "uuid"
	ModificationTag       ModificationType = "tag"
)

// ModificationOrder is the order in which modification types are applied.
var ModificationOrder = []ModificationType{
	ModificationSite,
	ModificationOSVersion,
	ModificationOwner,
	ModificationUUID,
	ModificationTag,
}

type SeedKind string

const (
	SeedKindCatalog       SeedKind = "catalog"
	SeedKindManifest      SeedKind = "manifest"
	SeedKindAliases       SeedKind = "aliases"
	SeedKindModifications SeedKind = "modifications"
)
