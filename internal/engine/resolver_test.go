package engine

import (
	"strings"
	"testing"
)

func TestResolveTemplate_DirectKeys(t *testing.T) {
	payload := map[string]any{
		"id": float64(42),
		"customer": map[string]any{
			"email": "a@b.com",
		},
	}

	got := ResolveTemplate("Order {{ id }} for {{ customer.email }}", payload)
	want := "Order 42 for a@b.com"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveTemplate_ResourceAliasing(t *testing.T) {
	// Шаблон написан для order, payload — голый объект {id, email}:
	// алиасинг ресурсных префиксов должен разрешить оба плейсхолдера
	payload := map[string]any{"id": float64(42), "email": "a@b.com"}

	got := ResolveTemplate("Order {{ order.id }} / {{ order.email }}", payload)
	want := "Order 42 / a@b.com"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveTemplate_DirectKeysBeatAliases(t *testing.T) {
	// Настоящий вложенный ключ order.id в приоритете перед алиасом id
	payload := map[string]any{
		"id": float64(1),
		"order": map[string]any{
			"id": float64(99),
		},
	}

	got := ResolveTemplate("{{ order.id }} and {{ id }}", payload)
	want := "99 and 1"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveTemplate_NoSpaceVariant(t *testing.T) {
	payload := map[string]any{"id": float64(7)}

	got := ResolveTemplate("{{id}}-{{ id }}", payload)
	if got != "7-7" {
		t.Errorf("expected %q, got %q", "7-7", got)
	}
}

func TestResolveTemplate_UnmatchedLeftVerbatim(t *testing.T) {
	payload := map[string]any{"id": float64(7)}

	got := ResolveTemplate("{{ id }} / {{ nonexistent.key }}", payload)
	want := "7 / {{ nonexistent.key }}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveTemplate_NonScalarSkipped(t *testing.T) {
	payload := map[string]any{
		"items": []any{map[string]any{"id": float64(1)}},
	}

	// Массив не подставляется, плейсхолдер остаётся
	got := ResolveTemplate("items: {{ items }}", payload)
	if got != "items: {{ items }}" {
		t.Errorf("array placeholder should stay verbatim, got %q", got)
	}
}

func TestResolveTemplate_LineItemsSummary(t *testing.T) {
	payload := map[string]any{
		"line_items": []any{
			map[string]any{"quantity": float64(2), "title": "Shirt", "price": "10.00"},
		},
	}

	// Валюта отсутствует — после скобки остаётся пробел
	want := "2x Shirt ( 10.00)"
	got := ResolveTemplate("{{ line_items_summary }}", payload)
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	// Результат стабилен между вызовами
	again := ResolveTemplate("{{ line_items_summary }}", payload)
	if again != got {
		t.Errorf("resolution not stable: %q vs %q", got, again)
	}
}

func TestResolveTemplate_LineItemsSummaryMultiple(t *testing.T) {
	payload := map[string]any{
		"order": map[string]any{
			"line_items": []any{
				map[string]any{"quantity": float64(2), "title": "Shirt", "currency": "USD", "price": "10.00"},
				map[string]any{"quantity": float64(1), "title": "Cap", "currency": "USD", "price": "5.00"},
			},
		},
	}

	got := ResolveTemplate("{{ line_items_summary }}", payload)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "2x Shirt (USD 10.00)" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "1x Cap (USD 5.00)" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestResolveTemplate_EmailFallback(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "direct_email_wins",
			payload: map[string]any{"email": "direct@x.com", "contact_email": "contact@x.com"},
			want:    "direct@x.com",
		},
		{
			name:    "contact_email_first",
			payload: map[string]any{"contact_email": "contact@x.com", "customer": map[string]any{"email": "cust@x.com"}},
			want:    "contact@x.com",
		},
		{
			name:    "customer_email_next",
			payload: map[string]any{"customer": map[string]any{"email": "cust@x.com"}},
			want:    "cust@x.com",
		},
		{
			name:    "order_email_last",
			payload: map[string]any{"order": map[string]any{"email": "order@x.com"}},
			want:    "order@x.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTemplate("{{ email }}", tt.payload)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveTemplate_Idempotent(t *testing.T) {
	payload := map[string]any{"id": float64(42)}

	once := ResolveTemplate("Order {{ id }}", payload)
	twice := ResolveTemplate(once, payload)
	if once != twice {
		t.Errorf("resolution should be idempotent: %q vs %q", once, twice)
	}
}

func TestResolveTemplate_FloatFormatting(t *testing.T) {
	// Целые float без экспоненты и дробного хвоста
	payload := map[string]any{"total": float64(42), "rate": float64(10.5)}

	got := ResolveTemplate("{{ total }} at {{ rate }}", payload)
	if got != "42 at 10.5" {
		t.Errorf("expected %q, got %q", "42 at 10.5", got)
	}
}

func TestResolveTemplate_NoPlaceholders(t *testing.T) {
	got := ResolveTemplate("plain text", map[string]any{"id": float64(1)})
	if got != "plain text" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}
