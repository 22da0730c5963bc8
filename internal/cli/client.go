package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client — HTTP-клиент для API Cascade.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиента с таймаутом по умолчанию.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- DTO ---
// Типы дублируются из internal/api: CLI не импортирует серверные пакеты.

// FlowResponse — flow в ответах API.
type FlowResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ShopDomain string         `json:"shop_domain"`
	IsActive   bool           `json:"is_active"`
	Nodes      []NodeResponse `json:"nodes,omitempty"`
	Edges      []EdgeResponse `json:"edges,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NodeResponse — узел графа flow.
type NodeResponse struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Label    string         `json:"label,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
	Position int            `json:"position"`
}

// EdgeResponse — ребро графа flow.
type EdgeResponse struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
	Branch       string `json:"branch"`
	Position     int    `json:"position"`
}

// ExecutionResponse — запуск flow в ответах API.
type ExecutionResponse struct {
	ID               string     `json:"id"`
	FlowID           string     `json:"flow_id"`
	Topic            string     `json:"topic"`
	ExternalEventID  string     `json:"external_event_id"`
	Status           string     `json:"status"`
	NodesExecuted    int        `json:"nodes_executed"`
	ActionsCompleted int        `json:"actions_completed"`
	Error            string     `json:"error,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ExecutionLogResponse — запись журнала execution.
type ExecutionLogResponse struct {
	ID        int64          `json:"id"`
	NodeID    *string        `json:"node_id,omitempty"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// WebhookResponse — ответ на отправленное событие.
type WebhookResponse struct {
	Topic           string   `json:"topic"`
	ExternalEventID string   `json:"external_event_id"`
	FlowsMatched    int      `json:"flows_matched"`
	FlowIDs         []string `json:"flow_ids,omitempty"`
}

// CreateFlowRequest — тело запроса создания flow.
type CreateFlowRequest struct {
	Name       string `json:"name"`
	ShopDomain string `json:"shop_domain"`
	IsActive   bool   `json:"is_active"`
}

// UpdateFlowRequest — тело запроса обновления flow.
type UpdateFlowRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// GraphRequest — тело запроса замены графа flow.
type GraphRequest struct {
	Nodes []NodeRequest `json:"nodes"`
	Edges []EdgeRequest `json:"edges"`
}

// NodeRequest — узел в запросе замены графа.
type NodeRequest struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type"`
	Label    string         `json:"label,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
	Position int            `json:"position,omitempty"`
}

// EdgeRequest — ребро в запросе замены графа.
type EdgeRequest struct {
	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
	Branch       string `json:"branch,omitempty"`
	Position     int    `json:"position,omitempty"`
}

// Обёртки ответов API.
type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Flows ---

// ListFlows возвращает список flows.
func (c *Client) ListFlows(ctx context.Context, shopDomain string, isActive *bool, limit int) ([]FlowResponse, error) {
	q := url.Values{}
	if shopDomain != "" {
		q.Set("shop_domain", shopDomain)
	}
	if isActive != nil {
		q.Set("is_active", strconv.FormatBool(*isActive))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/flows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var flows []FlowResponse
	if err := c.list(ctx, path, &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// CreateFlow создаёт новый flow.
func (c *Client) CreateFlow(ctx context.Context, req CreateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.post(ctx, "/api/v1/flows", req, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// GetFlow возвращает flow вместе с графом.
func (c *Client) GetFlow(ctx context.Context, id string) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.get(ctx, "/api/v1/flows/"+id, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// UpdateFlow обновляет имя или активность flow.
func (c *Client) UpdateFlow(ctx context.Context, id string, req UpdateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.put(ctx, "/api/v1/flows/"+id, req, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/flows/"+id)
}

// ReplaceGraph атомарно заменяет граф flow.
func (c *Client) ReplaceGraph(ctx context.Context, id string, req GraphRequest) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.put(ctx, "/api/v1/flows/"+id+"/graph", req, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// --- Executions ---

// ListExecutions возвращает список executions с фильтрами.
func (c *Client) ListExecutions(ctx context.Context, flowID, status string, limit int) ([]ExecutionResponse, error) {
	q := url.Values{}
	if flowID != "" {
		q.Set("flow_id", flowID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/executions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var executions []ExecutionResponse
	if err := c.list(ctx, path, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(ctx context.Context, id string) (*ExecutionResponse, error) {
	var ex ExecutionResponse
	if err := c.get(ctx, "/api/v1/executions/"+id, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

// ListExecutionLogs возвращает журнал execution в порядке записи.
func (c *Client) ListExecutionLogs(ctx context.Context, id string) ([]ExecutionLogResponse, error) {
	var logs []ExecutionLogResponse
	if err := c.list(ctx, "/api/v1/executions/"+id+"/logs", &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// --- Events ---

// SendEvent отправляет событие магазина в webhook-endpoint.
func (c *Client) SendEvent(ctx context.Context, topic, eventID string, payload map[string]any) (*WebhookResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhooks/"+topic, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if eventID != "" {
		req.Header.Set("X-Event-ID", eventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return nil, err
	}

	var wrapper dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var out WebhookResponse
	if err := json.Unmarshal(wrapper.Data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doData(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doData(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.doData(ctx, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkError(resp)
}

// doData выполняет запрос и распаковывает поле data из ответа.
func (c *Client) doData(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	var wrapper dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(wrapper.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// list выполняет GET и распаковывает поле data из списочного ответа.
func (c *Client) list(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	var wrapper listResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(wrapper.Data) == 0 || string(wrapper.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(wrapper.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// checkError разбирает ответ с кодом >= 400 в ошибку.
func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("%s (%s)", errResp.Error.Message, errResp.Error.Code)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
