package condition

import (
	"fmt"
	"sort"
	"strings"
)

// Fields is a decoded JSON document. Paths walk nested objects.
type Fields map[string]any

// Resolve looks up a dotted path. A missing path yields nil, false.
func (f Fields) Resolve(path []string) (any, bool) {
	var cur any = map[string]any(f)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Evaluate walks the AST against doc. Missing fields evaluate as null.
func Evaluate(expr Expr, doc Fields) (bool, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		left, err := Evaluate(e.Left, doc)
		if err != nil {
			return false, err
		}
		if (e.Op == "AND" && !left) || (e.Op == "OR" && left) {
			return left, nil
		}
		return Evaluate(e.Right, doc)
	case *NotExpr:
		v, err := Evaluate(e.Expr, doc)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		return compare(e, resolve(e.Left, doc), resolve(e.Right, doc))
	default:
		return false, fmt.Errorf("unknown expr type %T", expr)
	}
}

func resolve(op Operand, doc Fields) any {
	switch o := op.(type) {
	case *LiteralOperand:
		return o.Value
	case *FieldOperand:
		v, _ := doc.Resolve(o.Path)
		return v
	}
	return nil
}

// Rule is one compiled expression together with its source text.
type Rule struct {
	Source string
	expr   Expr
}

// Compile parses src once for repeated evaluation.
func Compile(src string) (*Rule, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", src, err)
	}
	return &Rule{Source: src, expr: expr}, nil
}

// Holds reports whether doc satisfies the rule.
func (r *Rule) Holds(doc Fields) (bool, error) {
	ok, err := Evaluate(r.expr, doc)
	if err != nil {
		return false, fmt.Errorf("rule %q: %w", r.Source, err)
	}
	return ok, nil
}

func (r *Rule) String() string { return r.Source }

// Set holds the compiled rules of every topic.
type Set map[string][]*Rule

// CompileSet compiles rules keyed by topic, reporting every bad rule at once.
func CompileSet(src map[string][]string) (Set, error) {
	set := make(Set, len(src))
	var errs []string
	topics := make([]string, 0, len(src))
	for topic := range src {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		for _, s := range src[topic] {
			r, err := Compile(s)
			if err != nil {
				errs = append(errs, topic+": "+err.Error())
				continue
			}
			set[topic] = append(set[topic], r)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return set, nil
}

// Violation returns the first rule of topic that doc breaks, or nil. An
// evaluation error counts as a violation and is returned alongside.
func (s Set) Violation(topic string, doc Fields) (*Rule, error) {
	for _, r := range s[topic] {
		ok, err := r.Holds(doc)
		if err != nil {
			return r, err
		}
		if !ok {
			return r, nil
		}
	}
	return nil, nil
}
