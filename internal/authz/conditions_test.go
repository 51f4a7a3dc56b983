package authz

import (
	"strings"
	"testing"
)

func TestEvalConditionsOwnershipSubstitution(t *testing.T) {
	conds := []Condition{{Field: "ownerId", Operator: OpEquals, Value: "${userId}"}}

	ok, _ := evalConditions(conds, map[string]any{"userId": "42", "ownerId": "42"})
	if !ok {
		t.Fatalf("expected owner match to pass")
	}

	ok, reason := evalConditions(conds, map[string]any{"userId": "42", "ownerId": "99"})
	if ok {
		t.Fatalf("expected owner mismatch to fail")
	}
	if !strings.Contains(reason, "ownerId") {
		t.Fatalf("expected reason to name the failing field, got %q", reason)
	}
}

func TestEvalConditionsOperators(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		ctx  map[string]any
		want bool
	}{
		{"equals numeric cross-type", Condition{Field: "visits", Operator: OpEquals, Value: 3}, map[string]any{"visits": 3.0}, true},
		{"not_equals", Condition{Field: "status", Operator: OpNotEquals, Value: "archived"}, map[string]any{"status": "active"}, true},
		{"in match", Condition{Field: "species", Operator: OpIn, Value: []any{"dog", "cat"}}, map[string]any{"species": "cat"}, true},
		{"in miss", Condition{Field: "species", Operator: OpIn, Value: []any{"dog", "cat"}}, map[string]any{"species": "bird"}, false},
		{"not_in", Condition{Field: "species", Operator: OpNotIn, Value: []string{"dog"}}, map[string]any{"species": "cat"}, true},
		{"greater_than", Condition{Field: "age", Operator: OpGreaterThan, Value: 2}, map[string]any{"age": 5}, true},
		{"less_than numeric string", Condition{Field: "weight", Operator: OpLessThan, Value: "10"}, map[string]any{"weight": 4.5}, true},
		{"greater_than non-numeric fails", Condition{Field: "age", Operator: OpGreaterThan, Value: "old"}, map[string]any{"age": 5}, false},
		{"missing field fails equals", Condition{Field: "ownerId", Operator: OpEquals, Value: "7"}, map[string]any{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := evalConditions([]Condition{tt.cond}, tt.ctx)
			if got != tt.want {
				t.Fatalf("got %v (reason %q), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestEvalConditionsInRequiresArray(t *testing.T) {
	conds := []Condition{{Field: "species", Operator: OpIn, Value: "dog"}}
	ok, reason := evalConditions(conds, map[string]any{"species": "dog"})
	if ok {
		t.Fatalf("non-array value for in must fail closed")
	}
	if !strings.Contains(reason, "array") {
		t.Fatalf("reason should mention the array requirement, got %q", reason)
	}
}

func TestEvalConditionsUnknownOperatorFailsClosed(t *testing.T) {
	conds := []Condition{{Field: "age", Operator: Operator("between"), Value: []any{1, 9}}}
	ok, reason := evalConditions(conds, map[string]any{"age": 5})
	if ok {
		t.Fatalf("unknown operator must fail closed")
	}
	if !strings.Contains(reason, "unsupported operator") {
		t.Fatalf("reason should flag the operator, got %q", reason)
	}
}

func TestEvalConditionsStopsAtFirstFailure(t *testing.T) {
	conds := []Condition{
		{Field: "practiceId", Operator: OpEquals, Value: int64(2)},
		{Field: "ownerId", Operator: OpEquals, Value: "${userId}"},
	}
	ok, reason := evalConditions(conds, map[string]any{"practiceId": int64(1), "ownerId": "42", "userId": "42"})
	if ok {
		t.Fatalf("expected AND semantics to deny")
	}
	if !strings.Contains(reason, "practiceId") {
		t.Fatalf("expected the first failing condition in the reason, got %q", reason)
	}
}

func TestSubstituteLeavesLiteralsAlone(t *testing.T) {
	if got := substitute("plain", map[string]any{"plain": "other"}); got != "plain" {
		t.Fatalf("literal string must pass through, got %v", got)
	}
	if got := substitute("${userId}", map[string]any{"userId": "42"}); got != "42" {
		t.Fatalf("token must resolve from context, got %v", got)
	}
	if got := substitute("${missing}", map[string]any{}); got != nil {
		t.Fatalf("unresolvable token yields nil, got %v", got)
	}
}
