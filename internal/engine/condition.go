package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// Rule — одно правило условия: поле payload, оператор, ожидаемое значение.
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// RuleOutcome — результат вычисления одного правила. Каждый результат
// попадает в журнал выполнения, поэтому правила вычисляются все,
// без короткого замыкания.
type RuleOutcome struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
}

// EvaluateCondition вычисляет правила узла-условия против payload.
//
// Схема settings:
//
//	{"rules": [{"field": ..., "operator": ..., "value": ...}], "logic": "and"|"or"}
//
// Пустой список правил — true (pass-through). Logic по умолчанию — AND.
// Вычисление никогда не возвращает ошибку: отсутствующее поле — это
// nil-значение, неизвестный оператор — false (fail-safe).
func EvaluateCondition(settings map[string]any, payload map[string]any) (bool, []RuleOutcome) {
	rules := parseRules(settings)
	if len(rules) == 0 {
		return true, nil
	}

	doc := gabs.Wrap(payload)

	outcomes := make([]RuleOutcome, 0, len(rules))
	passedCount := 0
	for _, r := range rules {
		var actual any
		if v := doc.Path(r.Field); v != nil {
			actual = v.Data()
		}
		passed := evaluateRule(r.Operator, actual, r.Value)
		if passed {
			passedCount++
		}
		outcomes = append(outcomes, RuleOutcome{
			Field:    r.Field,
			Operator: r.Operator,
			Expected: r.Value,
			Actual:   actual,
			Passed:   passed,
		})
	}

	logic := strings.ToLower(fmt.Sprint(settings["logic"]))
	if logic == "or" {
		return passedCount > 0, outcomes
	}
	// AND — по умолчанию.
	return passedCount == len(rules), outcomes
}

// parseRules извлекает правила из settings узла.
// Элементы неожиданной формы пропускаются.
func parseRules(settings map[string]any) []Rule {
	raw, ok := settings["rules"].([]any)
	if !ok {
		return nil
	}

	rules := make([]Rule, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field, _ := m["field"].(string)
		op, _ := m["operator"].(string)
		rules = append(rules, Rule{Field: field, Operator: op, Value: m["value"]})
	}
	return rules
}

// evaluateRule вычисляет один оператор. Неизвестный оператор — false.
func evaluateRule(op string, actual, expected any) bool {
	switch op {
	case "equals", "=", "==":
		return valuesEqual(actual, expected)
	case "not_equals", "!=":
		return !valuesEqual(actual, expected)
	case "greater_than", ">":
		cmp, ok := compareValues(actual, expected)
		return ok && cmp > 0
	case "less_than", "<":
		cmp, ok := compareValues(actual, expected)
		return ok && cmp < 0
	case "greater_equal", ">=":
		cmp, ok := compareValues(actual, expected)
		return ok && cmp >= 0
	case "less_equal", "<=":
		cmp, ok := compareValues(actual, expected)
		return ok && cmp <= 0
	case "contains":
		return containsValue(actual, expected)
	case "not_contains":
		return !containsValue(actual, expected)
	case "starts_with":
		return actual != nil && strings.HasPrefix(stringify(actual), stringify(expected))
	case "ends_with":
		return actual != nil && strings.HasSuffix(stringify(actual), stringify(expected))
	case "empty":
		return isEmptyValue(actual)
	case "not_empty":
		return !isEmptyValue(actual)
	default:
		return false
	}
}

// valuesEqual сравнивает значения: числа как числа, остальное как строки.
// "10" и 10 считаются равными — webhook payloads часто несут числа строками.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

// compareValues возвращает знак сравнения a и b и признак сравнимости.
// Числа сравниваются как числа, иначе лексикографически как строки.
// nil ни с чем не сравним.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return strings.Compare(stringify(a), stringify(b)), true
}

// containsValue: для массива — членство элемента, для строки — подстрока.
func containsValue(actual, expected any) bool {
	switch v := actual.(type) {
	case nil:
		return false
	case []any:
		for _, item := range v {
			if valuesEqual(item, expected) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(stringify(actual), stringify(expected))
	}
}

// isEmptyValue: nil, пустая строка, пустой массив или объект.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// toFloat приводит значение к float64, включая числовые строки.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// stringify — каноническое строковое представление скаляра.
// float64 без экспоненты и хвостовых нулей: 42 → "42", не "4.2e+01".
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}
