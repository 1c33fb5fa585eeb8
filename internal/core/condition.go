package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"fleet-manifests/internal/types"
)

// Condition is a compiled predicate over client attributes. The zero
// value and a nil *Condition both always evaluate to true.
type Condition struct {
	text    string
	program *vm.Program
	keys    []string
}

// conditionOptions registers the comparison helpers that rewritten
// condition text calls into. Boolean structure is left to expr.
var conditionOptions = []expr.Option{
	expr.AsBool(),
	expr.AllowUndefinedVariables(),
	expr.Function("cmp", func(params ...any) (any, error) {
		attrs, _ := params[0].(types.Attributes)
		return compareAttribute(attrs, params[1].(string), params[2].(string), params[3].(string)), nil
	}, new(func(types.Attributes, string, string, string) bool)),
	expr.Function("member", func(params ...any) (any, error) {
		attrs, _ := params[0].(types.Attributes)
		set := make([]string, 0)
		for _, value := range params[2].([]any) {
			set = append(set, fmt.Sprint(value))
		}
		return memberAttribute(attrs, params[1].(string), set), nil
	}, new(func(types.Attributes, string, []any) bool)),
}

// ParseCondition compiles a condition expression. Blank text yields an
// unconditional Condition.
func ParseCondition(text string) (*Condition, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Condition{}, nil
	}
	tokens, err := lexCondition(trimmed)
	if err != nil {
		return nil, conditionError(trimmed, err)
	}
	source, keys, err := rewriteCondition(tokens)
	if err != nil {
		return nil, conditionError(trimmed, err)
	}
	program, err := expr.Compile(source, conditionOptions...)
	if err != nil {
		return nil, conditionError(trimmed, err)
	}
	return &Condition{text: trimmed, program: program, keys: keys}, nil
}

func conditionError(text string, cause error) error {
	return types.WrapError(types.KindValidation, fmt.Sprintf("invalid condition %q: %v", text, cause), cause, text)
}

// String returns the condition text as parsed.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.text
}

// Keys returns the attribute keys the condition references, sorted.
func (c *Condition) Keys() []string {
	if c == nil {
		return nil
	}
	return c.keys
}

// Evaluate reports whether attrs satisfy the condition. If any
// referenced key is missing from attrs (or outside the attribute
// vocabulary) the whole condition is false.
func (c *Condition) Evaluate(attrs types.Attributes) bool {
	if c == nil || c.program == nil {
		return true
	}
	for _, key := range c.keys {
		if _, ok := types.AttributeVocabulary[key]; !ok {
			return false
		}
		if !attrs.Has(key) {
			return false
		}
	}
	out, err := expr.Run(c.program, map[string]any{"attrs": attrs})
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Evaluate is the functional form of (*Condition).Evaluate.
func Evaluate(condition *Condition, attrs types.Attributes) bool {
	return condition.Evaluate(attrs)
}

// compareAttribute is "key op value". Against a multi-valued attribute
// it holds when any value matches, except "!=" which requires that none
// do. Only tags is multi-valued; other keys use their first value.
func compareAttribute(attrs types.Attributes, key string, op string, value string) bool {
	values := attrs[key]
	if key != types.AttrTags && len(values) > 1 {
		values = values[:1]
	}
	if op == "!=" {
		return !slices.Contains(values, value)
	}
	for _, have := range values {
		if compareValues(have, op, value) {
			return true
		}
	}
	return false
}

func compareValues(left string, op string, right string) bool {
	switch op {
	case "==":
		return left == right
	case "<":
		return CompareDotted(left, right) < 0
	case "<=":
		return CompareDotted(left, right) <= 0
	case ">":
		return CompareDotted(left, right) > 0
	case ">=":
		return CompareDotted(left, right) >= 0
	default:
		return false
	}
}

// memberAttribute is "key IN {a, b}" or, with a single value, "a IN key".
func memberAttribute(attrs types.Attributes, key string, set []string) bool {
	for _, value := range attrs[key] {
		if slices.Contains(set, value) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokValue
	tokOp
	tokAnd
	tokOr
	tokNot
	tokIn
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokComma
)

type condToken struct {
	kind tokenKind
	text string
	pos  int
}

var keywordTokens = map[string]tokenKind{
	"AND": tokAnd,
	"OR":  tokOr,
	"NOT": tokNot,
	"IN":  tokIn,
}

func lexCondition(text string) ([]condToken, error) {
	var tokens []condToken
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, condToken{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, condToken{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '{':
			tokens = append(tokens, condToken{kind: tokLBrace, text: "{", pos: i})
			i++
		case r == '}':
			tokens = append(tokens, condToken{kind: tokRBrace, text: "}", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, condToken{kind: tokComma, text: ",", pos: i})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, fmt.Errorf("unexpected %q at offset %d", r, i)
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			tokens = append(tokens, condToken{kind: kind, text: string([]rune{r, r}), pos: i})
			i += 2
		case r == '=' || r == '!' || r == '<' || r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, condToken{kind: tokOp, text: string([]rune{r, '='}), pos: i})
				i += 2
				continue
			}
			switch r {
			case '!':
				tokens = append(tokens, condToken{kind: tokNot, text: "!", pos: i})
			case '<', '>':
				tokens = append(tokens, condToken{kind: tokOp, text: string(r), pos: i})
			default:
				return nil, fmt.Errorf("single '=' at offset %d, use '=='", i)
			}
			i++
		case r == '"':
			value, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, condToken{kind: tokValue, text: value, pos: i})
			i = next
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == '_' || runes[i] == '-') {
				i++
			}
			tokens = append(tokens, condToken{kind: tokValue, text: string(runes[start:i]), pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			word := string(runes[start:i])
			if kind, ok := keywordTokens[strings.ToUpper(word)]; ok {
				tokens = append(tokens, condToken{kind: kind, text: word, pos: start})
				continue
			}
			tokens = append(tokens, condToken{kind: tokIdent, text: strings.ToLower(word), pos: start})
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", r, i)
		}
	}
	return tokens, nil
}

func lexString(runes []rune, start int) (string, int, error) {
	var b strings.Builder
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) {
				return "", 0, fmt.Errorf("unterminated string at offset %d", start)
			}
			i++
			b.WriteRune(runes[i])
		case '"':
			return b.String(), i + 1, nil
		default:
			b.WriteRune(runes[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d", start)
}

// ---------------------------------------------------------------------------
// Rewrite
// ---------------------------------------------------------------------------

// rewriteCondition turns each comparison into a cmp or member call and
// passes the connectives through, producing expr source. Values are
// always emitted as strings so "10.10" keeps its dotted meaning.
func rewriteCondition(tokens []condToken) (string, []string, error) {
	var b strings.Builder
	seen := map[string]struct{}{}
	i := 0
	next := func(kind tokenKind, what string) (condToken, error) {
		if i >= len(tokens) {
			return condToken{}, fmt.Errorf("expected %s, got end of input", what)
		}
		tok := tokens[i]
		if tok.kind != kind {
			return condToken{}, fmt.Errorf("expected %s, got %q", what, tok.text)
		}
		i++
		return tok, nil
	}
	call := func(fn string, key string, args ...string) {
		seen[key] = struct{}{}
		fmt.Fprintf(&b, "%s(attrs, %s, %s) ", fn, strconv.Quote(key), strings.Join(args, ", "))
	}

	for i < len(tokens) {
		tok := tokens[i]
		i++
		switch tok.kind {
		case tokAnd:
			b.WriteString("and ")
		case tokOr:
			b.WriteString("or ")
		case tokNot:
			b.WriteString("not ")
		case tokLParen:
			b.WriteString("(")
		case tokRParen:
			b.WriteString(")")
		case tokValue:
			if _, err := next(tokIn, "IN"); err != nil {
				return "", nil, err
			}
			ident, err := next(tokIdent, "attribute name")
			if err != nil {
				return "", nil, err
			}
			call("member", ident.text, "["+strconv.Quote(tok.text)+"]")
		case tokIdent:
			if i < len(tokens) && tokens[i].kind == tokIn {
				i++
				if _, err := next(tokLBrace, "'{'"); err != nil {
					return "", nil, err
				}
				var set []string
				for {
					value, err := next(tokValue, "value")
					if err != nil {
						return "", nil, err
					}
					set = append(set, strconv.Quote(value.text))
					if i < len(tokens) && tokens[i].kind == tokComma {
						i++
						continue
					}
					if _, err := next(tokRBrace, "'}'"); err != nil {
						return "", nil, err
					}
					break
				}
				call("member", tok.text, "["+strings.Join(set, ", ")+"]")
				continue
			}
			op, err := next(tokOp, "comparison operator")
			if err != nil {
				return "", nil, err
			}
			value, err := next(tokValue, "value")
			if err != nil {
				return "", nil, err
			}
			call("cmp", tok.text, strconv.Quote(op.text), strconv.Quote(value.text))
		default:
			return "", nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return b.String(), keys, nil
}

// conditionCache compiles each distinct condition text once per resolution.
type conditionCache map[string]*Condition

func (c conditionCache) get(text string) (*Condition, error) {
	if cond, ok := c[text]; ok {
		return cond, nil
	}
	cond, err := ParseCondition(text)
	if err != nil {
		return nil, err
	}
	c[text] = cond
	return cond, nil
}
