package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestFlow_EdgesFrom(t *testing.T) {
	source := uuid.New()
	other := uuid.New()
	flow := &Flow{
		Edges: []Edge{
			{ID: uuid.New(), SourceNodeID: source, TargetNodeID: uuid.New(), Branch: BranchTrue, Position: 2},
			{ID: uuid.New(), SourceNodeID: source, TargetNodeID: uuid.New(), Branch: BranchTrue, Position: 1},
			{ID: uuid.New(), SourceNodeID: source, TargetNodeID: uuid.New(), Branch: BranchFalse, Position: 1},
			{ID: uuid.New(), SourceNodeID: other, TargetNodeID: uuid.New(), Branch: BranchTrue, Position: 1},
		},
	}

	edges := flow.EdgesFrom(source, BranchTrue)
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	// Фильтр по source и branch, чужие рёбра не попадают
	for _, e := range edges {
		if e.SourceNodeID != source || e.Branch != BranchTrue {
			t.Errorf("unexpected edge: source=%s branch=%s", e.SourceNodeID, e.Branch)
		}
	}

	if got := flow.EdgesFrom(source, BranchError); len(got) != 0 {
		t.Errorf("expected no error edges, got %d", len(got))
	}
}

func TestFlow_TriggerNodes(t *testing.T) {
	flow := &Flow{
		Nodes: []Node{
			{ID: uuid.New(), Type: NodeTypeAction, Position: 1},
			{ID: uuid.New(), Type: NodeTypeTrigger, Position: 2, Settings: map[string]any{"topic": "orders/create"}},
			{ID: uuid.New(), Type: NodeTypeTrigger, Position: 3, Settings: map[string]any{"topic": "orders/paid"}},
			{ID: uuid.New(), Type: NodeTypeCondition, Position: 4},
		},
	}

	triggers := flow.TriggerNodes()
	if len(triggers) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(triggers))
	}
	if triggers[0].Topic() != "orders/create" {
		t.Errorf("expected first trigger by position, got %s", triggers[0].Topic())
	}
}

func TestNode_Settings(t *testing.T) {
	node := &Node{
		Settings: map[string]any{
			"topic":  "orders/create",
			"action": "add_tag",
			// JSON-числа приходят как float64
			"timeout_sec": float64(15),
			"count":       7,
		},
	}

	if node.Topic() != "orders/create" {
		t.Errorf("unexpected topic: %s", node.Topic())
	}
	if node.ActionKey() != "add_tag" {
		t.Errorf("unexpected action key: %s", node.ActionKey())
	}
	if got := node.SettingInt("timeout_sec"); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
	if got := node.SettingInt("count"); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}

	// Отсутствующие и нестроковые значения дают zero value
	if got := node.SettingString("missing"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if got := node.SettingString("timeout_sec"); got != "" {
		t.Errorf("expected empty string for non-string, got %q", got)
	}
	if got := node.SettingInt("topic"); got != 0 {
		t.Errorf("expected 0 for non-number, got %d", got)
	}
}

func TestExecution_Lifecycle(t *testing.T) {
	ex := &Execution{ID: uuid.New(), FlowID: uuid.New()}

	if ex.IsFinished() {
		t.Error("new execution should not be finished")
	}
	if ex.Duration() != 0 {
		t.Error("expected zero duration before start")
	}

	ex.MarkRunning()
	if ex.Status != ExecutionStatusRunning || ex.StartedAt == nil {
		t.Errorf("unexpected state after MarkRunning: %s", ex.Status)
	}
	if ex.IsFinished() {
		t.Error("running execution should not be finished")
	}

	ex.NodesExecuted = 3
	ex.ActionsCompleted = 1
	ex.MarkFailed("boom")
	if ex.Status != ExecutionStatusFailed || ex.FinishedAt == nil {
		t.Errorf("unexpected state after MarkFailed: %s", ex.Status)
	}
	if !ex.IsFinished() {
		t.Error("failed execution should be finished")
	}
	// Счётчики переживают провал
	if ex.NodesExecuted != 3 || ex.ActionsCompleted != 1 {
		t.Errorf("counters lost: nodes=%d actions=%d", ex.NodesExecuted, ex.ActionsCompleted)
	}
	if ex.Duration() <= 0 {
		t.Error("expected positive duration after finish")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		topic string
		want  TopicCategory
	}{
		{"orders/create", CategoryOrder},
		{"draft_orders/update", CategoryOrder},
		{"products/delete", CategoryProduct},
		{"customers/create", CategoryCustomer},
		{"carts/update", CategoryCart},
		{"checkouts/create", CategoryCheckout},
		{"shop/update", CategoryShop},
		{"refunds/create", CategoryUnknown},
		{"orders", CategoryOrder},
		{"", CategoryUnknown},
	}

	for _, tt := range tests {
		if got := CategoryOf(tt.topic); got != tt.want {
			t.Errorf("CategoryOf(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
