package engine

import (
	"testing"
)

func TestEvaluateCondition_AndOr(t *testing.T) {
	rules := []any{
		map[string]any{"field": "total", "operator": ">", "value": 100},
		map[string]any{"field": "country", "operator": "=", "value": "US"},
	}

	tests := []struct {
		name    string
		logic   string
		payload map[string]any
		want    bool
	}{
		{
			name:    "and_all_pass",
			logic:   "AND",
			payload: map[string]any{"total": 150, "country": "US"},
			want:    true,
		},
		{
			name:    "and_one_fails",
			logic:   "AND",
			payload: map[string]any{"total": 150, "country": "CA"},
			want:    false,
		},
		{
			name:    "or_one_passes",
			logic:   "OR",
			payload: map[string]any{"total": 150, "country": "CA"},
			want:    true,
		},
		{
			name:    "or_none_passes",
			logic:   "OR",
			payload: map[string]any{"total": 50, "country": "CA"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := map[string]any{"rules": rules, "logic": tt.logic}
			got, outcomes := EvaluateCondition(settings, tt.payload)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			// Все правила вычисляются, без короткого замыкания
			if len(outcomes) != 2 {
				t.Errorf("expected 2 rule outcomes, got %d", len(outcomes))
			}
		})
	}
}

func TestEvaluateCondition_EmptyRules(t *testing.T) {
	// Пустой список правил — pass-through
	got, outcomes := EvaluateCondition(map[string]any{}, map[string]any{"total": 1})
	if !got {
		t.Error("empty rules should evaluate to true")
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestEvaluateCondition_DefaultLogicIsAnd(t *testing.T) {
	settings := map[string]any{
		"rules": []any{
			map[string]any{"field": "a", "operator": "=", "value": 1},
			map[string]any{"field": "b", "operator": "=", "value": 2},
		},
	}

	got, _ := EvaluateCondition(settings, map[string]any{"a": 1, "b": 99})
	if got {
		t.Error("without logic setting, AND should be assumed")
	}
}

func TestEvaluateCondition_Operators(t *testing.T) {
	payload := map[string]any{
		"total":   float64(150),
		"country": "US",
		"email":   "buyer@example.com",
		"tags":    []any{"vip", "wholesale"},
		"note":    "",
		"customer": map[string]any{
			"address": map[string]any{"city": "Austin"},
		},
	}

	tests := []struct {
		name     string
		field    string
		operator string
		value    any
		want     bool
	}{
		{"equals_alias", "country", "equals", "US", true},
		{"not_equals", "country", "!=", "CA", true},
		{"greater_than", "total", "greater_than", 100, true},
		{"less_than", "total", "<", 100, false},
		{"greater_equal", "total", ">=", 150, true},
		{"less_equal", "total", "<=", 149, false},
		{"numeric_string_compare", "total", ">", "100.5", true},
		{"contains_string", "email", "contains", "@example", true},
		{"contains_array", "tags", "contains", "vip", true},
		{"not_contains_array", "tags", "not_contains", "retail", true},
		{"starts_with", "email", "starts_with", "buyer", true},
		{"ends_with", "email", "ends_with", ".com", true},
		{"empty_blank_string", "note", "empty", nil, true},
		{"empty_missing_field", "missing.path", "empty", nil, true},
		{"not_empty", "email", "not_empty", nil, true},
		{"nested_field", "customer.address.city", "=", "Austin", true},
		{"missing_field_equals", "missing", "=", "US", false},
		// Неизвестный оператор — false, не ошибка
		{"unknown_operator", "total", "regex", ".*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := map[string]any{
				"rules": []any{
					map[string]any{"field": tt.field, "operator": tt.operator, "value": tt.value},
				},
			}
			got, _ := EvaluateCondition(settings, payload)
			if got != tt.want {
				t.Errorf("%s %s %v: expected %v, got %v", tt.field, tt.operator, tt.value, tt.want, got)
			}
		})
	}
}

func TestEvaluateCondition_OutcomesCarryActualValues(t *testing.T) {
	settings := map[string]any{
		"rules": []any{
			map[string]any{"field": "total", "operator": ">", "value": 100},
			map[string]any{"field": "country", "operator": "=", "value": "US"},
		},
	}
	payload := map[string]any{"total": float64(150), "country": "CA"}

	got, outcomes := EvaluateCondition(settings, payload)
	if got {
		t.Error("expected false with AND and one failing rule")
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	if !outcomes[0].Passed {
		t.Error("first rule (total > 100) should pass")
	}
	if outcomes[1].Passed {
		t.Error("second rule (country = US) should fail")
	}
	if outcomes[1].Actual != "CA" {
		t.Errorf("expected actual value CA, got %v", outcomes[1].Actual)
	}
}
