package domain

import "strings"

// TopicCategory — категория ресурса, к которому относится topic события.
//
// Категория используется диспетчером действий для контекстного
// переназначения обобщённых ключей (например, "add_tag" →
// "order_add_tag"). Явная таблица вместо поиска подстрок: новый
// topic без записи в таблице даёт CategoryUnknown, а не тихий
// неверный маршрут.
type TopicCategory string

const (
	CategoryOrder    TopicCategory = "order"
	CategoryProduct  TopicCategory = "product"
	CategoryCustomer TopicCategory = "customer"
	CategoryCart     TopicCategory = "cart"
	CategoryCheckout TopicCategory = "checkout"
	CategoryShop     TopicCategory = "shop"
	CategoryUnknown  TopicCategory = ""
)

// topicCategories — таблица соответствия первого сегмента topic категории.
// Topics имеют вид "resource/event": "orders/create", "products/update".
var topicCategories = map[string]TopicCategory{
	"orders":       CategoryOrder,
	"draft_orders": CategoryOrder,
	"products":     CategoryProduct,
	"customers":    CategoryCustomer,
	"carts":        CategoryCart,
	"checkouts":    CategoryCheckout,
	"shop":         CategoryShop,
}

// CategoryOf возвращает категорию ресурса для topic.
// Неизвестный префикс даёт CategoryUnknown.
func CategoryOf(topic string) TopicCategory {
	resource, _, _ := strings.Cut(topic, "/")
	return topicCategories[resource]
}
