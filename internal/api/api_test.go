package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/mq"
	"github.com/korzhev/Cascade/internal/repo"
)

// fakeFlowStore — FlowStore в памяти для тестов handler'ов.
type fakeFlowStore struct {
	flows map[uuid.UUID]*domain.Flow
}

func newFakeFlowStore() *fakeFlowStore {
	return &fakeFlowStore{flows: make(map[uuid.UUID]*domain.Flow)}
}

func (s *fakeFlowStore) Create(_ context.Context, flow *domain.Flow) error {
	s.flows[flow.ID] = flow
	return nil
}

func (s *fakeFlowStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	flow, ok := s.flows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *flow
	return &cp, nil
}

func (s *fakeFlowStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeFlowStore) List(_ context.Context, _ repo.FlowFilter) ([]domain.Flow, error) {
	var out []domain.Flow
	for _, f := range s.flows {
		out = append(out, *f)
	}
	return out, nil
}

func (s *fakeFlowStore) Update(_ context.Context, flow *domain.Flow) error {
	if _, ok := s.flows[flow.ID]; !ok {
		return repo.ErrNotFound
	}
	s.flows[flow.ID] = flow
	return nil
}

func (s *fakeFlowStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.flows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.flows, id)
	return nil
}

func (s *fakeFlowStore) ListActiveByTopic(_ context.Context, topic string) ([]domain.Flow, error) {
	var out []domain.Flow
	for _, f := range s.flows {
		if !f.IsActive {
			continue
		}
		for _, n := range f.Nodes {
			if n.Type == domain.NodeTypeTrigger && n.Topic() == topic {
				out = append(out, *f)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeFlowStore) ReplaceGraph(_ context.Context, flowID uuid.UUID, nodes []domain.Node, edges []domain.Edge) error {
	flow, ok := s.flows[flowID]
	if !ok {
		return repo.ErrNotFound
	}
	flow.Nodes = nodes
	flow.Edges = edges
	return nil
}

type fakeExecStore struct {
	executions map[uuid.UUID]*domain.Execution
}

func (s *fakeExecStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Execution, error) {
	ex, ok := s.executions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return ex, nil
}

func (s *fakeExecStore) List(_ context.Context, _ repo.ExecutionFilter) ([]domain.Execution, error) {
	var out []domain.Execution
	for _, ex := range s.executions {
		out = append(out, *ex)
	}
	return out, nil
}

type fakeLogStore struct {
	logs map[uuid.UUID][]domain.ExecutionLog
}

func (s *fakeLogStore) ListByExecutionID(_ context.Context, id uuid.UUID) ([]domain.ExecutionLog, error) {
	return s.logs[id], nil
}

type capturingPublisher struct {
	events []mq.EventInboundPayload
}

func (p *capturingPublisher) PublishEventInbound(_ context.Context, payload mq.EventInboundPayload) error {
	p.events = append(p.events, payload)
	return nil
}

func newTestServer(flows *fakeFlowStore, pub *capturingPublisher) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(flows, &fakeExecStore{executions: map[uuid.UUID]*domain.Execution{}}, &fakeLogStore{}, pub, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func activeFlowWithTrigger(topic string) *domain.Flow {
	flowID := uuid.New()
	return &domain.Flow{
		ID:       flowID,
		Name:     "flow-" + topic,
		IsActive: true,
		Nodes: []domain.Node{{
			ID:       uuid.New(),
			FlowID:   flowID,
			Type:     domain.NodeTypeTrigger,
			Settings: map[string]any{"topic": topic},
			Position: 1,
		}},
	}
}

func TestReceiveWebhook_PublishesPerMatchingFlow(t *testing.T) {
	flows := newFakeFlowStore()
	f1 := activeFlowWithTrigger("orders/create")
	f2 := activeFlowWithTrigger("orders/create")
	other := activeFlowWithTrigger("products/update")
	flows.flows[f1.ID] = f1
	flows.flows[f2.ID] = f2
	flows.flows[other.ID] = other

	pub := &capturingPublisher{}
	srv := newTestServer(flows, pub)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/orders/create", strings.NewReader(`{"id": 42}`))
	req.Header.Set("X-Event-ID", "evt-abc")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	// По одному событию на подходящий flow, с topic и ключом из запроса
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.events))
	}
	for _, e := range pub.events {
		if e.Topic != "orders/create" {
			t.Errorf("unexpected topic: %s", e.Topic)
		}
		if e.ExternalEventID != "evt-abc" {
			t.Errorf("unexpected external_event_id: %s", e.ExternalEventID)
		}
		if e.Payload["id"] != float64(42) {
			t.Errorf("unexpected payload: %v", e.Payload)
		}
	}
}

func TestReceiveWebhook_GeneratesEventID(t *testing.T) {
	flows := newFakeFlowStore()
	f := activeFlowWithTrigger("orders/create")
	flows.flows[f.ID] = f

	pub := &capturingPublisher{}
	srv := newTestServer(flows, pub)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhooks/orders/create", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	if pub.events[0].ExternalEventID == "" {
		t.Error("expected generated external_event_id")
	}
}

func TestReceiveWebhook_NoMatchingFlows(t *testing.T) {
	pub := &capturingPublisher{}
	srv := newTestServer(newFakeFlowStore(), pub)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhooks/orders/create", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	// Нет подходящих flows — событие принято, но никуда не ушло
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected no published events, got %d", len(pub.events))
	}
}

func TestCreateFlow_Validation(t *testing.T) {
	srv := newTestServer(newFakeFlowStore(), &capturingPublisher{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/flows", "application/json", strings.NewReader(`{"shop_domain": "x"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", resp.StatusCode)
	}
}

func TestReplaceGraph_RejectsDanglingEdge(t *testing.T) {
	flows := newFakeFlowStore()
	f := activeFlowWithTrigger("orders/create")
	flows.flows[f.ID] = f

	srv := newTestServer(flows, &capturingPublisher{})
	defer srv.Close()

	nodeID := uuid.New()
	body, _ := json.Marshal(map[string]any{
		"nodes": []map[string]any{
			{"id": nodeID, "type": "trigger", "settings": map[string]any{"topic": "orders/create"}},
		},
		"edges": []map[string]any{
			{"source_node_id": nodeID, "target_node_id": uuid.New(), "branch": "then"},
		},
	})

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/flows/"+f.ID.String()+"/graph", strings.NewReader(string(body)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for dangling edge, got %d", resp.StatusCode)
	}
}

func TestGetExecution_NotFound(t *testing.T) {
	srv := newTestServer(newFakeFlowStore(), &capturingPublisher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/executions/" + uuid.New().String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
