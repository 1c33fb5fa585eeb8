package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	debversion "github.com/knqyf263/go-deb-version"

	"fleet-manifests/internal/types"
)

// preparedConstraint is a pre-parsed version constraint ready for
// repeated comparison against candidate versions of one scheme.
type preparedConstraint struct {
	op     types.ConstraintOp
	raw    string
	deb    debversion.Version
	pep    pep440.Specifiers
	dotted []string
}

// versionCache memoizes parsed version objects to avoid repeated parsing
// during constraint evaluation and sorting.
type versionCache struct {
	scheme types.VersionScheme
	deb    map[string]debversion.Version
	pep    map[string]pep440.Version
	spec   map[string]pep440.Specifiers
}

func newVersionCache(scheme types.VersionScheme) *versionCache {
	return &versionCache{
		scheme: normalizeScheme(scheme),
		deb:    map[string]debversion.Version{},
		pep:    map[string]pep440.Version{},
		spec:   map[string]pep440.Specifiers{},
	}
}

func normalizeScheme(scheme types.VersionScheme) types.VersionScheme {
	switch types.VersionScheme(strings.ToLower(strings.TrimSpace(string(scheme)))) {
	case types.VersionSchemeDeb:
		return types.VersionSchemeDeb
	case types.VersionSchemePep440:
		return types.VersionSchemePep440
	default:
		return types.VersionSchemeDotted
	}
}

func (c *versionCache) debVersion(value string) (debversion.Version, error) {
	if parsed, ok := c.deb[value]; ok {
		return parsed, nil
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		return debversion.Version{}, err
	}
	c.deb[value] = parsed
	return parsed, nil
}

func (c *versionCache) pepVersion(value string) (pep440.Version, error) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		return pep440.Version{}, err
	}
	c.pep[value] = parsed
	return parsed, nil
}

func (c *versionCache) pepSpec(value string) (pep440.Specifiers, error) {
	if parsed, ok := c.spec[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.NewSpecifiers(value)
	if err != nil {
		return pep440.Specifiers{}, err
	}
	c.spec[value] = parsed
	return parsed, nil
}

// compare returns -1, 0, or 1 comparing two version strings using the
// cache's scheme. Unparsable deb/pep440 versions fall back to dotted
// comparison so ordering stays total.
func (c *versionCache) compare(a string, b string) int {
	switch c.scheme {
	case types.VersionSchemeDeb:
		v1, err1 := c.debVersion(a)
		v2, err2 := c.debVersion(b)
		if err1 == nil && err2 == nil {
			return v1.Compare(v2)
		}
	case types.VersionSchemePep440:
		v1, err1 := c.pepVersion(a)
		v2, err2 := c.pepVersion(b)
		if err1 == nil && err2 == nil {
			return v1.Compare(v2)
		}
	}
	return CompareDotted(a, b)
}

// validVersion reports whether value parses under the cache's scheme.
func (c *versionCache) validVersion(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty version")
	}
	switch c.scheme {
	case types.VersionSchemeDeb:
		_, err := c.debVersion(value)
		return err
	case types.VersionSchemePep440:
		_, err := c.pepVersion(value)
		return err
	default:
		return nil
	}
}

// CompareDotted compares dotted identifiers component-wise. Numeric
// components compare as integers, so "10.10" is newer than "10.9";
// non-numeric components compare lexically and missing components count
// as zero.
func CompareDotted(a string, b string) int {
	left := splitDotted(a)
	right := splitDotted(b)
	n := len(left)
	if len(right) > n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		l, r := "0", "0"
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		if cmp := compareComponent(l, r); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func splitDotted(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
}

func compareComponent(a string, b string) int {
	ai, aErr := strconv.ParseUint(a, 10, 64)
	bi, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	case aErr == nil:
		// numeric components sort after textual ones ("1.0" > "1.0b")
		return 1
	case bErr == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// bestEntry selects the highest-versioned entry satisfying all of the
// constraints. All entries must share one identifier and so one scheme.
func bestEntry(entries []types.PackageEntry, constraints []types.Constraint) (types.PackageEntry, bool, error) {
	if len(entries) == 0 {
		return types.PackageEntry{}, false, nil
	}
	cache := newVersionCache(entries[0].Scheme)
	prepared, err := prepareConstraints(constraints, cache)
	if err != nil {
		return types.PackageEntry{}, false, err
	}
	var best types.PackageEntry
	found := false
	for _, entry := range entries {
		ok, err := satisfiesAll(entry.Version, prepared, cache)
		if err != nil {
			return types.PackageEntry{}, false, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("cannot compare %s", entry.Key())).
				WithCause(err)
		}
		if !ok {
			continue
		}
		if !found || cache.compare(entry.Version, best.Version) > 0 {
			best = entry
			found = true
		}
	}
	return best, found, nil
}

// satisfiesConstraint reports whether a single entry satisfies c.
func satisfiesConstraint(entry types.PackageEntry, c types.Constraint) (bool, error) {
	cache := newVersionCache(entry.Scheme)
	prepared, err := prepareConstraints([]types.Constraint{c}, cache)
	if err != nil {
		return false, err
	}
	return satisfiesAll(entry.Version, prepared, cache)
}

// prepareConstraints parses each constraint's version string upfront so
// it can be reused across multiple candidate comparisons.
func prepareConstraints(constraints []types.Constraint, cache *versionCache) ([]preparedConstraint, error) {
	var out []preparedConstraint
	for _, constraint := range constraints {
		if constraint.Op == types.ConstraintOpNone {
			continue
		}
		prepared := preparedConstraint{op: constraint.Op, raw: constraint.Version}
		switch cache.scheme {
		case types.VersionSchemeDeb:
			parsed, err := cache.debVersion(constraint.Version)
			if err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("invalid deb version in constraint: %s", constraint.Version)).
					WithCause(err)
			}
			prepared.deb = parsed
		case types.VersionSchemePep440:
			spec, err := cache.pepSpec(toPep440Spec(constraint))
			if err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("invalid pep440 specifier: %s", constraint.Version)).
					WithCause(err)
			}
			prepared.pep = spec
		default:
			prepared.dotted = splitDotted(constraint.Version)
		}
		out = append(out, prepared)
	}
	return out, nil
}

func satisfiesAll(version string, constraints []preparedConstraint, cache *versionCache) (bool, error) {
	if len(constraints) == 0 {
		return true, nil
	}
	switch cache.scheme {
	case types.VersionSchemeDeb:
		return satisfiesDeb(version, constraints, cache)
	case types.VersionSchemePep440:
		return satisfiesPep440(version, constraints, cache)
	default:
		return satisfiesDotted(version, constraints)
	}
}

func satisfiesDeb(version string, constraints []preparedConstraint, cache *versionCache) (bool, error) {
	v, err := cache.debVersion(version)
	if err != nil {
		return false, err
	}
	for _, constraint := range constraints {
		c := constraint.deb
		switch constraint.op {
		case types.ConstraintOpEq, types.ConstraintOpEq2:
			if !v.Equal(c) {
				return false, nil
			}
		case types.ConstraintOpNe:
			if v.Equal(c) {
				return false, nil
			}
		case types.ConstraintOpGte:
			if v.LessThan(c) {
				return false, nil
			}
		case types.ConstraintOpLte:
			if v.GreaterThan(c) {
				return false, nil
			}
		case types.ConstraintOpGt:
			if !v.GreaterThan(c) {
				return false, nil
			}
		case types.ConstraintOpLt:
			if !v.LessThan(c) {
				return false, nil
			}
		default:
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unsupported constraint operator for deb versions: %s", constraint.op))
		}
	}
	return true, nil
}

func satisfiesPep440(version string, constraints []preparedConstraint, cache *versionCache) (bool, error) {
	parsed, err := cache.pepVersion(version)
	if err != nil {
		return false, err
	}
	for _, constraint := range constraints {
		if !constraint.pep.Check(parsed) {
			return false, nil
		}
	}
	return true, nil
}

func satisfiesDotted(version string, constraints []preparedConstraint) (bool, error) {
	for _, constraint := range constraints {
		cmp := CompareDotted(version, constraint.raw)
		ok := false
		switch constraint.op {
		case types.ConstraintOpEq, types.ConstraintOpEq2:
			ok = cmp == 0
		case types.ConstraintOpNe:
			ok = cmp != 0
		case types.ConstraintOpGte:
			ok = cmp >= 0
		case types.ConstraintOpLte:
			ok = cmp <= 0
		case types.ConstraintOpGt:
			ok = cmp > 0
		case types.ConstraintOpLt:
			ok = cmp < 0
		case types.ConstraintOpCompat:
			ok = cmp >= 0 && compatibleRelease(version, constraint.dotted)
		default:
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unsupported constraint operator: %s", constraint.op))
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// compatibleRelease implements "~=": every component but the last of the
// constraint must match the candidate.
func compatibleRelease(version string, constraint []string) bool {
	if len(constraint) < 2 {
		return true
	}
	candidate := splitDotted(version)
	for i := 0; i < len(constraint)-1; i++ {
		if i >= len(candidate) || compareComponent(candidate[i], constraint[i]) != 0 {
			return false
		}
	}
	return true
}

// toPep440Spec converts an internal constraint to a PEP 440 specifier
// string (e.g. ">= 1.0", "~= 2.3").
func toPep440Spec(constraint types.Constraint) string {
	op := string(constraint.Op)
	switch constraint.Op {
	case types.ConstraintOpEq, types.ConstraintOpEq2:
		op = "=="
	case types.ConstraintOpNe:
		op = "!="
	case types.ConstraintOpCompat:
		op = "~="
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", op, constraint.Version))
}
