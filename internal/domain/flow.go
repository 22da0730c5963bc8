package domain

import (
	"time"

	"github.com/google/uuid"
)

// Flow — определение автоматизации магазина.
//
// Flow — это направленный граф из узлов (Node) и рёбер (Edge):
// триггер принимает входящее событие, условия ветвят обход,
// действия производят side effects.
//
// Граф изменяется только редактором между запусками. Во время
// выполнения движок работает с неизменяемым снапшотом (Nodes и
// Edges загружаются одним чтением и дальше только читаются).
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — имя flow (например, "tag-big-orders").
	Name string `json:"name"`

	// ShopDomain — магазин-владелец (tenant).
	ShopDomain string `json:"shop_domain"`

	// IsActive — флаг активности. Неактивные flows не реагируют на события.
	IsActive bool `json:"is_active"`

	// Nodes — узлы графа. Заполняется при загрузке снапшота.
	Nodes []Node `json:"nodes,omitempty"`

	// Edges — рёбра графа в порядке объявления (position).
	Edges []Edge `json:"edges,omitempty"`

	// CreatedAt — время создания flow.
	CreatedAt time.Time `json:"created_at"`
}

// NodeType — тип узла графа.
type NodeType string

const (
	// NodeTypeTrigger — точка входа: узел активируется входящим событием.
	NodeTypeTrigger NodeType = "trigger"

	// NodeTypeCondition — узел ветвления: вычисляет правила и выбирает ветку.
	NodeTypeCondition NodeType = "condition"

	// NodeTypeAction — узел действия: вызывает зарегистрированное действие.
	NodeTypeAction NodeType = "action"
)

// Ветки (метки рёбер), которые понимает движок.
const (
	// BranchThen — ветка по умолчанию после триггера или действия.
	BranchThen = "then"

	// BranchTrue — ветка условия, когда правила выполнились.
	BranchTrue = "true"

	// BranchFalse — ветка условия, когда правила не выполнились.
	BranchFalse = "false"

	// BranchError — ветка обработки ошибки действия.
	BranchError = "error"
)

// Node — один узел графа.
//
// Settings — непрозрачная карта, которую интерпретирует логика
// конкретного типа: у триггера там topic, у условия — rules/logic,
// у действия — action и его параметры. Движок узлы не мутирует.
type Node struct {
	// ID — уникальный идентификатор узла.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на родительский flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Type — тип узла: trigger, condition или action.
	Type NodeType `json:"type"`

	// Label — человекочитаемое имя узла (задаёт редактор).
	Label string `json:"label,omitempty"`

	// Settings — настройки узла, интерпретируются по типу.
	Settings map[string]any `json:"settings,omitempty"`

	// Position — порядковый номер узла (стабильный порядок среди триггеров).
	Position int `json:"position"`
}

// Edge — направленное ребро графа с меткой ветки.
//
// Несколько рёбер могут иметь одинаковые source и branch — это
// fan-out: движок обходит цели в порядке position.
type Edge struct {
	// ID — уникальный идентификатор ребра.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на родительский flow.
	FlowID uuid.UUID `json:"flow_id"`

	// SourceNodeID — узел-источник.
	SourceNodeID uuid.UUID `json:"source_node_id"`

	// TargetNodeID — узел-назначение.
	TargetNodeID uuid.UUID `json:"target_node_id"`

	// Branch — метка ветки: then, true, false, error или произвольная.
	Branch string `json:"branch"`

	// Position — порядок ребра при fan-out.
	Position int `json:"position"`
}

// NodeByID возвращает узел по ID или nil.
func (f *Flow) NodeByID(id uuid.UUID) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// TriggerNodes возвращает все узлы-триггеры в порядке position.
// Порядок важен: при отсутствии точного совпадения topic движок
// берёт первый триггер.
func (f *Flow) TriggerNodes() []*Node {
	var triggers []*Node
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTypeTrigger {
			triggers = append(triggers, &f.Nodes[i])
		}
	}
	return triggers
}

// EdgesFrom возвращает рёбра из узла с указанной меткой ветки
// в порядке position (порядок обхода при fan-out).
func (f *Flow) EdgesFrom(sourceID uuid.UUID, branch string) []*Edge {
	var edges []*Edge
	for i := range f.Edges {
		e := &f.Edges[i]
		if e.SourceNodeID == sourceID && e.Branch == branch {
			edges = append(edges, e)
		}
	}
	return edges
}

// SettingString извлекает строковое значение из settings узла.
func (n *Node) SettingString(key string) string {
	if v, ok := n.Settings[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SettingInt извлекает числовое значение из settings узла.
func (n *Node) SettingInt(key string) int {
	if v, ok := n.Settings[key]; ok {
		switch num := v.(type) {
		case int:
			return num
		case int64:
			return int(num)
		case float64:
			return int(num)
		}
	}
	return 0
}

// Topic возвращает topic триггера (settings.topic).
func (n *Node) Topic() string {
	return n.SettingString("topic")
}

// ActionKey возвращает ключ действия (settings.action).
func (n *Node) ActionKey() string {
	return n.SettingString("action")
}
