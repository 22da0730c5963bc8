package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

const (
	// ActionKeyHTTPRequest — ключ HTTP действия.
	ActionKeyHTTPRequest = "http_request"

	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи настроек HTTP действия.
const (
	settingMethod     = "method"
	settingURL        = "url"
	settingHeaders    = "headers"
	settingBody       = "body"
	settingTimeoutSec = "timeout_sec"
)

// HTTPRequestAction — действие HTTP запроса к внешнему API.
//
// Все строковые настройки проходят через шаблонный резолвер,
// переменные payload доступны как "{{ order.id }}".
//
// Настройки:
//
//	{
//	    "action": "http_request",
//	    "method": "POST",
//	    "url": "https://api.example.com/orders/{{ order.id }}/tags",
//	    "headers": {"Authorization": "Bearer ..."},
//	    "body": "{\"tag\": \"vip\"}",
//	    "timeout_sec": 30
//	}
//
// Ответ со статусом >= 400 считается ошибкой действия.
type HTTPRequestAction struct {
	client *http.Client
}

// NewHTTPRequestAction создаёт HTTPRequestAction с клиентом по умолчанию.
func NewHTTPRequestAction() *HTTPRequestAction {
	return &HTTPRequestAction{
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// Key возвращает ключ действия.
func (a *HTTPRequestAction) Key() string {
	return ActionKeyHTTPRequest
}

// Handle выполняет HTTP запрос.
func (a *HTTPRequestAction) Handle(ctx context.Context, node *domain.Node, payload map[string]any, ec *engine.ExecContext) error {
	url := engine.ResolveTemplate(node.SettingString(settingURL), payload)
	if url == "" {
		return fmt.Errorf("%w: %s: url is required", ErrInvalidSettings, ActionKeyHTTPRequest)
	}

	method := strings.ToUpper(node.SettingString(settingMethod))
	if method == "" {
		method = http.MethodGet
	}

	req, err := a.buildRequest(ctx, node, payload, method, url)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if timeoutSec := node.SettingInt(settingTimeoutSec); timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrActionCancelled, ctx.Err())
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	ec.Log(ctx, &node.ID, domain.LogLevelInfo,
		fmt.Sprintf("http %s %s returned %d", method, url, resp.StatusCode),
		map[string]any{"status_code": resp.StatusCode},
	)
	return nil
}

// buildRequest собирает запрос: body и заголовки проходят резолвер.
func (a *HTTPRequestAction) buildRequest(ctx context.Context, node *domain.Node, payload map[string]any, method, url string) (*http.Request, error) {
	var bodyReader io.Reader
	hasBody := false

	switch body := node.Settings[settingBody].(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(engine.ResolveTemplate(body, payload))
		hasBody = body != ""
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader([]byte(engine.ResolveTemplate(string(raw), payload)))
		hasBody = true
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if headers, ok := node.Settings[settingHeaders].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, engine.ResolveTemplate(s, payload))
			}
		}
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// HTTPError — ошибка HTTP запроса (статус >= 400).
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой.
func IsHTTPError(err error) bool {
	_, ok := err.(*HTTPError)
	return ok
}
