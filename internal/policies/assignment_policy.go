package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

// AssignmentPolicy picks a client's root manifest from configured rules.
// The earliest rule with any matching pattern wins.
type AssignmentPolicy struct {
	Rules       []types.AssignmentRule
	exactByAttr map[string]map[string]int
	prefixes    map[string][]prefixPattern
	wildcard    int
}

type prefixPattern struct {
	prefix    string
	ruleIndex int
}

type parsedPattern struct {
	attr  string
	kind  patternKind
	value string
}

type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternWildcard
)

func NewAssignmentPolicy(rules []types.AssignmentRule) (AssignmentPolicy, error) {
	policy := AssignmentPolicy{wildcard: -1}
	for i, rule := range rules {
		if strings.TrimSpace(rule.Manifest) == "" {
			return AssignmentPolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("assignment rule %d has no manifest", i+1))
		}
		for _, pattern := range rule.Matches {
			if _, err := parsePattern(pattern); err != nil {
				return AssignmentPolicy{}, err
			}
		}
		policy.Rules = append(policy.Rules, rule)
	}
	policy.compile()
	return policy, nil
}

// Assign returns the manifest of the first rule matching attrs.
func (p AssignmentPolicy) Assign(attrs types.Attributes) (string, bool) {
	best := p.wildcard
	for attr, values := range attrs {
		for _, value := range values {
			if idx, found := p.exactByAttr[attr][value]; found {
				best = minIndex(best, idx)
			}
			for _, entry := range p.prefixes[attr] {
				if strings.HasPrefix(value, entry.prefix) {
					best = minIndex(best, entry.ruleIndex)
				}
			}
		}
	}
	if best >= 0 && best < len(p.Rules) {
		return p.Rules[best].Manifest, true
	}
	return "", false
}

func (p *AssignmentPolicy) compile() {
	p.exactByAttr = map[string]map[string]int{}
	p.prefixes = map[string][]prefixPattern{}
	p.wildcard = -1
	for idx, rule := range p.Rules {
		for _, pattern := range rule.Matches {
			parsed, err := parsePattern(pattern)
			if err != nil {
				continue
			}
			switch parsed.kind {
			case patternWildcard:
				if p.wildcard < 0 {
					p.wildcard = idx
				}
			case patternExact:
				if p.exactByAttr[parsed.attr] == nil {
					p.exactByAttr[parsed.attr] = map[string]int{}
				}
				if _, ok := p.exactByAttr[parsed.attr][parsed.value]; !ok {
					p.exactByAttr[parsed.attr][parsed.value] = idx
				}
			case patternPrefix:
				p.prefixes[parsed.attr] = append(p.prefixes[parsed.attr], prefixPattern{prefix: parsed.value, ruleIndex: idx})
			}
		}
	}
}

func parsePattern(pattern string) (parsedPattern, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "*" {
		return parsedPattern{kind: patternWildcard}, nil
	}
	attr, value, ok := strings.Cut(trimmed, ":")
	attr = strings.ToLower(strings.TrimSpace(attr))
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return parsedPattern{}, invalidPattern(pattern, "expected attr:value")
	}
	if _, known := types.AttributeVocabulary[attr]; !known {
		return parsedPattern{}, invalidPattern(pattern, "unknown attribute "+attr)
	}
	if strings.HasSuffix(value, "*") {
		return parsedPattern{attr: attr, kind: patternPrefix, value: strings.TrimSuffix(value, "*")}, nil
	}
	return parsedPattern{attr: attr, kind: patternExact, value: value}, nil
}

func invalidPattern(pattern string, reason string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid assignment pattern %q: %s", pattern, reason))
}

func minIndex(current int, candidate int) int {
	if candidate < 0 {
		return current
	}
	if current < 0 || candidate < current {
		return candidate
	}
	return current
}

var _ ports.AssignmentPort = AssignmentPolicy{}
