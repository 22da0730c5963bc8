package actions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

// fakeAction — действие-заглушка для тестов диспетчера.
type fakeAction struct {
	key   string
	calls int
	err   error
}

func (f *fakeAction) Key() string { return f.key }

func (f *fakeAction) Handle(_ context.Context, _ *domain.Node, _ map[string]any, _ *engine.ExecContext) error {
	f.calls++
	return f.err
}

func newExecContext(topic string) (*engine.ExecContext, *engine.MemStore) {
	store := engine.NewMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := &domain.Execution{ID: uuid.New(), FlowID: uuid.New(), Topic: topic}
	return engine.NewExecContext(ex, &domain.Flow{ID: ex.FlowID}, store, logger), store
}

func actionNode(settings map[string]any) *domain.Node {
	return &domain.Node{
		ID:       uuid.New(),
		Type:     domain.NodeTypeAction,
		Settings: settings,
	}
}

func TestDispatcher_ResolvesRegisteredKey(t *testing.T) {
	fake := &fakeAction{key: "send_email"}
	r := NewRegistry()
	r.Register(fake)
	d := NewDispatcher(r)

	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "send_email"})

	if err := d.Dispatch(context.Background(), node, nil, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 call, got %d", fake.calls)
	}
}

func TestDispatcher_ContextualRemap(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantKey string
	}{
		{"order_topic", "orders/create", "order_add_tag"},
		{"draft_order_topic", "draft_orders/create", "order_add_tag"},
		{"product_topic", "products/update", "product_add_tag"},
		{"customer_topic", "customers/create", "customer_add_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generic := &fakeAction{key: "add_tag"}
			specific := &fakeAction{key: tt.wantKey}
			r := NewRegistry()
			r.Register(generic)
			r.Register(specific)
			d := NewDispatcher(r)

			ec, _ := newExecContext(tt.topic)
			node := actionNode(map[string]any{"action": "add_tag"})

			if err := d.Dispatch(context.Background(), node, nil, ec); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Обобщённый ключ переназначен на ресурсо-специфичный
			if specific.calls != 1 {
				t.Errorf("expected %s to be called, got %d calls", tt.wantKey, specific.calls)
			}
			if generic.calls != 0 {
				t.Errorf("generic action should not be called, got %d calls", generic.calls)
			}
		})
	}
}

func TestDispatcher_UnknownCategoryKeepsKey(t *testing.T) {
	generic := &fakeAction{key: "add_tag"}
	r := NewRegistry()
	r.Register(generic)
	d := NewDispatcher(r)

	// Topic без категории — ключ остаётся обобщённым
	ec, _ := newExecContext("fulfillments/create")
	node := actionNode(map[string]any{"action": "add_tag"})

	if err := d.Dispatch(context.Background(), node, nil, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generic.calls != 1 {
		t.Errorf("expected generic action call, got %d", generic.calls)
	}
}

func TestDispatcher_ActionNotFound(t *testing.T) {
	d := NewDispatcher(NewRegistry())

	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "missing"})

	err := d.Dispatch(context.Background(), node, nil, ec)
	if !errors.Is(err, ErrActionNotFound) {
		t.Errorf("expected ErrActionNotFound, got %v", err)
	}
}

func TestDispatcher_MissingActionKey(t *testing.T) {
	d := NewDispatcher(NewRegistry())

	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{})

	err := d.Dispatch(context.Background(), node, nil, ec)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestDispatcher_PropagatesActionError(t *testing.T) {
	wantErr := errors.New("boom")
	fake := &fakeAction{key: "send_email", err: wantErr}
	r := NewRegistry()
	r.Register(fake)
	d := NewDispatcher(r)

	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "send_email"})

	err := d.Dispatch(context.Background(), node, nil, ec)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected action error to propagate, got %v", err)
	}
}

func TestRegistry_DefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, key := range []string{ActionKeyHTTPRequest, ActionKeyLog, ActionKeyDelay} {
		if !r.Has(key) {
			t.Errorf("expected built-in action %q to be registered", key)
		}
	}
	if r.Count() != 3 {
		t.Errorf("expected 3 built-in actions, got %d", r.Count())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAction{key: "x"})
	r.Unregister("x")

	if r.Has("x") {
		t.Error("expected action to be unregistered")
	}
	if _, err := r.Get("x"); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("expected ErrActionNotFound, got %v", err)
	}
}
