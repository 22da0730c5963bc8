package actions

import (
	"context"
	"fmt"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

// contextualKeys — переназначение обобщённых ключей действий по
// категории ресурса события.
//
// Узел может нести обобщённый ключ ("add_tag"), а реальная реализация
// зависит от того, к какому ресурсу относится событие: тег заказа,
// товара или покупателя. Явная таблица вместо поиска подстрок в
// topic: категория без записи оставляет ключ как есть, и промах
// виден как ErrActionNotFound, а не как тихий неверный маршрут.
var contextualKeys = map[string]map[domain.TopicCategory]string{
	"add_tag": {
		domain.CategoryOrder:    "order_add_tag",
		domain.CategoryProduct:  "product_add_tag",
		domain.CategoryCustomer: "customer_add_tag",
	},
	"remove_tag": {
		domain.CategoryOrder:    "order_remove_tag",
		domain.CategoryProduct:  "product_remove_tag",
		domain.CategoryCustomer: "customer_remove_tag",
	},
}

// Dispatcher — диспетчер действий.
//
// Реализует engine.Dispatcher: переназначает контекстные ключи,
// находит действие в реестре и вызывает его. Контекстное
// переназначение — контракт диспетчера, реестр о нём не знает.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher создаёт диспетчер поверх реестра.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch находит действие по ключу узла и выполняет его.
// Возвращает ErrActionNotFound для незарегистрированного ключа,
// ошибку самого действия — без изменений.
func (d *Dispatcher) Dispatch(ctx context.Context, node *domain.Node, payload map[string]any, ec *engine.ExecContext) error {
	key := node.ActionKey()
	if key == "" {
		return fmt.Errorf("%w: node %s has no action key", ErrInvalidSettings, node.ID)
	}

	key = d.resolveKey(key, ec)

	action, err := d.registry.Get(key)
	if err != nil {
		return err
	}

	return action.Handle(ctx, node, payload, ec)
}

// resolveKey переназначает обобщённый ключ в ресурсо-специфичный
// по категории topic текущего execution.
func (d *Dispatcher) resolveKey(key string, ec *engine.ExecContext) string {
	table, ok := contextualKeys[key]
	if !ok {
		return key
	}
	if specific, ok := table[domain.CategoryOf(ec.Execution.Topic)]; ok {
		return specific
	}
	return key
}
