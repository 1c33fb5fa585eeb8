package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"fleet-manifests/internal/types"
)

// opTokens is the ordered list of constraint operators tried during
// parsing. Longer tokens must precede shorter ones to avoid false matches
// (e.g. ">=" before ">").
var opTokens = []types.ConstraintOp{
	types.ConstraintOpGte,
	types.ConstraintOpLte,
	types.ConstraintOpCompat,
	types.ConstraintOpNe,
	types.ConstraintOpEq2,
	types.ConstraintOpEq,
	types.ConstraintOpGt,
	types.ConstraintOpLt,
}

// ParseConstraint splits a raw "name>=version" string into a Constraint.
// When no operator is found the constraint is treated as a bare name
// reference with ConstraintOpNone.
func ParseConstraint(raw string, source string) (types.Constraint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Constraint{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty constraint")
	}
	for _, op := range opTokens {
		idx := strings.Index(raw, string(op))
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(raw[:idx])
		version := strings.TrimSpace(raw[idx+len(op):])
		if name == "" || version == "" {
			return types.Constraint{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid constraint: %s", raw))
		}
		return types.Constraint{
			Name:    name,
			Op:      op,
			Version: version,
			Source:  source,
		}, nil
	}
	return types.Constraint{
		Name:   raw,
		Op:     types.ConstraintOpNone,
		Source: source,
	}, nil
}

// ParseReference parses a manifest line such as "Firefox",
// "Firefox>=120" or "testing/Firefox>=120". The catalog qualifier is the
// text before the first "/" of the name part.
func ParseReference(raw string, source string) (types.PackageReference, error) {
	constraint, err := ParseConstraint(raw, source)
	if err != nil {
		return types.PackageReference{}, err
	}
	ref := types.PackageReference{Raw: strings.TrimSpace(raw)}
	if catalog, name, ok := strings.Cut(constraint.Name, "/"); ok {
		catalog = strings.TrimSpace(catalog)
		name = strings.TrimSpace(name)
		if catalog == "" || name == "" || strings.Contains(name, "/") {
			return types.PackageReference{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid qualified reference: %s", raw))
		}
		ref.Catalog = catalog
		constraint.Name = name
	}
	ref.Name = constraint.Name
	ref.Constraint = constraint
	return ref, nil
}

// ParseRequirement parses a requires/conflicts element of a package
// entry. Qualified names are not allowed there.
func ParseRequirement(raw string, source string) (types.Constraint, error) {
	constraint, err := ParseConstraint(raw, source)
	if err != nil {
		return types.Constraint{}, err
	}
	if strings.Contains(constraint.Name, "/") {
		return types.Constraint{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("requirement may not name a catalog: %s", raw))
	}
	return constraint, nil
}
