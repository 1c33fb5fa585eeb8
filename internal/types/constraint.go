package types

type Constraint struct {
	Name    string
	Op      ConstraintOp
	Version string
	Source  string
}

// PackageReference is a parsed manifest reference such as
// "testing/Firefox>=120.0". Catalog is empty when the reference is not
// qualified.
type PackageReference struct {
	Raw        string
	Catalog    string
	Name       string
	Constraint Constraint
}
