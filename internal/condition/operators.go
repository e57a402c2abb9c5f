package condition

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
)

// Operator represents a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

// patterns caches regexes whose source is only known at evaluation time.
var patterns sync.Map // string → *regexp.Regexp

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compare applies a binary comparison operator to two values. A nil operand
// only satisfies == null and != on a non-nil value; the other operators are
// false on nil.
func compare(c *ComparisonExpr, left, right any) (bool, error) {
	switch c.Op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	}
	if left == nil || right == nil {
		return false, nil
	}
	switch c.Op {
	case OpGt, OpGte, OpLt, OpLte:
		return numericCompare(c.Op, left, right)
	case OpContains:
		ls, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("contains: left operand must be a string, got %T", left)
		}
		return strings.Contains(ls, fmt.Sprint(right)), nil
	case OpMatches:
		return matches(c.Pattern, left, right)
	default:
		return false, fmt.Errorf("unknown operator: %s", c.Op)
	}
}

// equal compares numbers by value and everything else by its printed form.
func equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		return math.Abs(lf-rf) < 1e-9
	}
	if lb, ok := left.(bool); ok {
		rb, ok := right.(bool)
		return ok && lb == rb
	}
	return fmt.Sprint(left) == fmt.Sprint(right)
}

func numericCompare(op Operator, left, right any) (bool, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case OpGt:
		return lf > rf, nil
	case OpGte:
		return lf >= rf, nil
	case OpLt:
		return lf < rf, nil
	default:
		return lf <= rf, nil
	}
}

func matches(re *regexp.Regexp, left, right any) (bool, error) {
	ls, ok := left.(string)
	if !ok {
		return false, fmt.Errorf("matches: left operand must be a string, got %T", left)
	}
	if re == nil {
		pattern, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("matches: right operand must be a string pattern, got %T", right)
		}
		var err error
		if re, err = cachedPattern(pattern); err != nil {
			return false, err
		}
	}
	return re.MatchString(ls), nil
}

func cachedPattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
	}
	actual, _ := patterns.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}
