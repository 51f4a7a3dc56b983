package authz

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// evalConditions applies every condition with AND semantics against the
// merged evaluation context. Evaluation stops at the first failure and
// reports which condition failed. It never panics: malformed data and
// unrecognized operators fail closed.
func evalConditions(conditions []Condition, evalCtx map[string]any) (bool, string) {
	for _, cond := range conditions {
		if ok, reason := evalCondition(cond, evalCtx); !ok {
			return false, reason
		}
	}
	return true, ""
}

func evalCondition(cond Condition, evalCtx map[string]any) (bool, string) {
	actual := evalCtx[cond.Field]
	expected := substitute(cond.Value, evalCtx)

	switch cond.Operator {
	case OpEquals:
		if valuesEqual(actual, expected) {
			return true, ""
		}
	case OpNotEquals:
		if !valuesEqual(actual, expected) {
			return true, ""
		}
	case OpIn:
		members, ok := toSlice(expected)
		if !ok {
			return false, conditionReason(cond, expected, "requires an array value")
		}
		if containsValue(members, actual) {
			return true, ""
		}
	case OpNotIn:
		members, ok := toSlice(expected)
		if !ok {
			return false, conditionReason(cond, expected, "requires an array value")
		}
		if !containsValue(members, actual) {
			return true, ""
		}
	case OpGreaterThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if aok && bok && a > b {
			return true, ""
		}
	case OpLessThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if aok && bok && a < b {
			return true, ""
		}
	default:
		return false, conditionReason(cond, expected, "unsupported operator")
	}
	return false, conditionReason(cond, expected, fmt.Sprintf("actual value %v", actual))
}

// substitute resolves "${name}" tokens from the evaluation context. Anything
// else passes through unchanged.
func substitute(value any, evalCtx map[string]any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return value
	}
	name := s[2 : len(s)-1]
	return evalCtx[name]
}

func conditionReason(cond Condition, resolved any, detail string) string {
	return fmt.Sprintf("Condition failed: %s %s %v (%s)", cond.Field, cond.Operator, resolved, detail)
}

// valuesEqual compares loosely enough to survive JSON round-trips: numbers
// compare numerically regardless of concrete type, everything else by
// string rendering when direct equality fails.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func containsValue(members []any, v any) bool {
	for _, m := range members {
		if valuesEqual(m, v) {
			return true
		}
	}
	return false
}
