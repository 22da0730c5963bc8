package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/repo"
)

// createFlowRequest — тело запроса создания flow.
type createFlowRequest struct {
	Name       string `json:"name"`
	ShopDomain string `json:"shop_domain"`
	IsActive   bool   `json:"is_active"`
}

// updateFlowRequest — тело запроса обновления flow.
type updateFlowRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

// graphRequest — тело запроса замены графа flow.
type graphRequest struct {
	Nodes []nodeRequest `json:"nodes"`
	Edges []edgeRequest `json:"edges"`
}

type nodeRequest struct {
	ID       *uuid.UUID      `json:"id"`
	Type     domain.NodeType `json:"type"`
	Label    string          `json:"label"`
	Settings map[string]any  `json:"settings"`
	Position int             `json:"position"`
}

type edgeRequest struct {
	ID           *uuid.UUID `json:"id"`
	SourceNodeID uuid.UUID  `json:"source_node_id"`
	TargetNodeID uuid.UUID  `json:"target_node_id"`
	Branch       string     `json:"branch"`
	Position     int        `json:"position"`
}

// ListFlows обрабатывает GET /api/v1/flows.
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	filter := repo.FlowFilter{
		ShopDomain: r.URL.Query().Get("shop_domain"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if active := r.URL.Query().Get("is_active"); active != "" {
		b, err := strconv.ParseBool(active)
		if err != nil {
			BadRequest(w, "invalid is_active")
			return
		}
		filter.IsActive = &b
	}

	flows, err := h.flows.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "flows not found") {
		return
	}
	List(w, flows, len(flows))
}

// CreateFlow обрабатывает POST /api/v1/flows.
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req createFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.ShopDomain == "" {
		BadRequest(w, "shop_domain is required")
		return
	}

	flow := &domain.Flow{
		ID:         uuid.New(),
		Name:       req.Name,
		ShopDomain: req.ShopDomain,
		IsActive:   req.IsActive,
		CreatedAt:  time.Now(),
	}
	if err := h.flows.Create(r.Context(), flow); err != nil {
		HandleRepoError(w, h.logger, err, "")
		return
	}
	Created(w, flow)
}

// GetFlow обрабатывает GET /api/v1/flows/{id}.
// Возвращает flow вместе с графом (узлы и рёбра).
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	flow, err := h.flows.GetSnapshot(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}
	Success(w, flow)
}

// UpdateFlow обрабатывает PUT /api/v1/flows/{id}.
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body")
		return
	}

	flow, err := h.flows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	if req.Name != nil {
		flow.Name = *req.Name
	}
	if req.IsActive != nil {
		flow.IsActive = *req.IsActive
	}

	if err := h.flows.Update(r.Context(), flow); err != nil {
		HandleRepoError(w, h.logger, err, "flow not found")
		return
	}
	Success(w, flow)
}

// DeleteFlow обрабатывает DELETE /api/v1/flows/{id}.
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.flows.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "flow not found")
		return
	}
	NoContent(w)
}

// ReplaceGraph обрабатывает PUT /api/v1/flows/{id}/graph.
// Атомарно заменяет весь граф flow. Граф мутируется только между
// запусками: уже идущие executions работают со старым снапшотом.
func (h *Handler) ReplaceGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req graphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body")
		return
	}

	// Flow должен существовать
	if _, err := h.flows.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	nodes := make([]domain.Node, 0, len(req.Nodes))
	nodeIDs := make(map[uuid.UUID]bool, len(req.Nodes))
	for i, n := range req.Nodes {
		if n.Type != domain.NodeTypeTrigger && n.Type != domain.NodeTypeCondition && n.Type != domain.NodeTypeAction {
			BadRequest(w, "unknown node type: "+string(n.Type))
			return
		}
		nodeID := uuid.New()
		if n.ID != nil {
			nodeID = *n.ID
		}
		nodeIDs[nodeID] = true
		nodes = append(nodes, domain.Node{
			ID:       nodeID,
			FlowID:   id,
			Type:     n.Type,
			Label:    n.Label,
			Settings: n.Settings,
			Position: positionOr(n.Position, i),
		})
	}

	edges := make([]domain.Edge, 0, len(req.Edges))
	for i, e := range req.Edges {
		if !nodeIDs[e.SourceNodeID] || !nodeIDs[e.TargetNodeID] {
			BadRequest(w, "edge references unknown node")
			return
		}
		edgeID := uuid.New()
		if e.ID != nil {
			edgeID = *e.ID
		}
		branch := e.Branch
		if branch == "" {
			branch = domain.BranchThen
		}
		edges = append(edges, domain.Edge{
			ID:           edgeID,
			FlowID:       id,
			SourceNodeID: e.SourceNodeID,
			TargetNodeID: e.TargetNodeID,
			Branch:       branch,
			Position:     positionOr(e.Position, i),
		})
	}

	if err := h.flows.ReplaceGraph(r.Context(), id, nodes, edges); err != nil {
		HandleRepoError(w, h.logger, err, "flow not found")
		return
	}

	flow, err := h.flows.GetSnapshot(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}
	Success(w, flow)
}

// --- Helpers ---

// pathUUID извлекает UUID из path-параметра.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt извлекает целочисленный query-параметр со значением по умолчанию.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// positionOr возвращает позицию из запроса или порядковый номер.
func positionOr(pos, index int) int {
	if pos > 0 {
		return pos
	}
	return index + 1
}
