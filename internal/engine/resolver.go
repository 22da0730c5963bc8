package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// aliasPrefixes — канонические префиксы ресурсов для алиасинга
// переменных. Webhook-тела разных ресурсов имеют разную форму:
// шаблон, написанный как "{{ order.id }}", должен разрешаться и
// тогда, когда payload — голый объект {id, email}. Для каждого
// плоского ключа регистрируется алиас под каждым префиксом,
// прямые ключи payload всегда в приоритете.
//
// Это осознанная эвристика, не типобезопасное разрешение; поведение
// закреплено тестами.
var aliasPrefixes = []string{"order", "product", "customer", "shop", "cart", "checkout"}

// lineItemsCandidates — места payload, где ищутся позиции заказа
// для сводки line_items_summary, в порядке приоритета.
var lineItemsCandidates = []string{"line_items", "order.line_items", "checkout.line_items", "cart.line_items"}

// emailCandidates — цепочка fallback для переменной email,
// когда прямого ключа email в payload нет.
var emailCandidates = []string{"contact_email", "customer.email", "order.email"}

// ResolveTemplate подставляет значения payload в шаблон.
//
// Синтаксис плейсхолдера — "{{ key }}" и "{{key}}"; key — dot-путь
// по payload ("order.customer.email"). Подставляются только скаляры;
// несовпавшие плейсхолдеры остаются в тексте как есть. Повторное
// разрешение уже разрешённой строки ничего не меняет.
func ResolveTemplate(template string, payload map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	vars := buildVars(payload)

	// Подстановка от длинных ключей к коротким, чтобы "id" не
	// откусил кусок от "order.id" в том же проходе.
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	out := template
	for _, k := range keys {
		v := vars[k]
		out = strings.ReplaceAll(out, "{{ "+k+" }}", v)
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

// buildVars строит таблицу переменных шаблона: плоские ключи payload,
// производные помощники, затем алиасы ресурсов.
func buildVars(payload map[string]any) map[string]string {
	vars := make(map[string]string)

	doc := gabs.Wrap(payload)
	if flat, err := doc.Flatten(); err == nil {
		for k, v := range flat {
			if s, ok := scalarString(v); ok {
				vars[k] = s
			}
		}
	}

	if _, ok := vars["line_items_summary"]; !ok {
		if summary, ok := lineItemsSummary(doc); ok {
			vars["line_items_summary"] = summary
		}
	}
	if _, ok := vars["email"]; !ok {
		for _, cand := range emailCandidates {
			if v, ok := vars[cand]; ok && v != "" {
				vars["email"] = v
				break
			}
		}
	}

	// Алиасы поверх снапшота ключей: прямые ключи не перезаписываются.
	base := make([]string, 0, len(vars))
	for k := range vars {
		base = append(base, k)
	}
	for _, k := range base {
		for _, prefix := range aliasPrefixes {
			alias := prefix + "." + k
			if _, ok := vars[alias]; !ok {
				vars[alias] = vars[k]
			}
		}
	}
	return vars
}

// lineItemsSummary строит сводку позиций заказа: по строке на позицию,
// "{qty}x {title} ({currency} {price})". Отсутствующая валюта даёт
// пробел после скобки, формат стабилен между вызовами.
func lineItemsSummary(doc *gabs.Container) (string, bool) {
	for _, path := range lineItemsCandidates {
		items, ok := doc.Path(path).Data().([]any)
		if !ok || len(items) == 0 {
			continue
		}

		lines := make([]string, 0, len(items))
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			qty := scalarOrEmpty(item["quantity"])
			title := scalarOrEmpty(item["title"])
			currency := scalarOrEmpty(item["currency"])
			price := scalarOrEmpty(item["price"])
			lines = append(lines, fmt.Sprintf("%sx %s (%s %s)", qty, title, currency, price))
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n"), true
		}
	}
	return "", false
}

// scalarString возвращает строковое представление скаляра.
// Массивы, объекты и nil не подставляются.
func scalarString(v any) (string, bool) {
	switch v.(type) {
	case nil, []any, map[string]any:
		return "", false
	default:
		return stringify(v), true
	}
}

func scalarOrEmpty(v any) string {
	s, _ := scalarString(v)
	return s
}
