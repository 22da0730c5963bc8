package actions

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/korzhev/Cascade/internal/domain"
)

func TestHTTPRequestAction_Success(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	action := NewHTTPRequestAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{
		"action": "http_request",
		"method": "POST",
		"url":    srv.URL + "/orders/{{ order.id }}/tags",
		"body":   `{"tag": "big-order-{{ order.id }}"}`,
	})
	payload := map[string]any{"id": float64(42)}

	if err := action.Handle(context.Background(), node, payload, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Шаблоны в url и body разрешены через алиасинг
	if gotPath != "/orders/42/tags" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if gotBody != `{"tag": "big-order-42"}` {
		t.Errorf("unexpected body: %q", gotBody)
	}
}

func TestHTTPRequestAction_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	action := NewHTTPRequestAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "http_request", "url": srv.URL})

	err := action.Handle(context.Background(), node, nil, ec)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !IsHTTPError(err) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", httpErr.StatusCode)
	}
}

func TestHTTPRequestAction_MissingURL(t *testing.T) {
	action := NewHTTPRequestAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "http_request"})

	err := action.Handle(context.Background(), node, nil, ec)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestHTTPRequestAction_HeadersResolved(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Shop")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	action := NewHTTPRequestAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{
		"action":  "http_request",
		"url":     srv.URL,
		"headers": map[string]any{"X-Shop": "{{ shop.domain }}"},
	})
	payload := map[string]any{"domain": "acme.example.com"}

	if err := action.Handle(context.Background(), node, payload, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotHeader != "acme.example.com" {
		t.Errorf("expected resolved header, got %q", gotHeader)
	}
}

func TestLogAction_ResolvesMessage(t *testing.T) {
	action := NewLogAction()
	ec, store := newExecContext("orders/create")
	node := actionNode(map[string]any{
		"action":  "log",
		"message": "Order {{ order.id }} processed",
	})
	payload := map[string]any{"id": float64(7)}

	if err := action.Handle(context.Background(), node, payload, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logs := store.Logs()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	if logs[0].Message != "Order 7 processed" {
		t.Errorf("unexpected message: %q", logs[0].Message)
	}
	if logs[0].Level != domain.LogLevelInfo {
		t.Errorf("expected info level by default, got %s", logs[0].Level)
	}
}

func TestLogAction_MissingMessage(t *testing.T) {
	action := NewLogAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "log"})

	err := action.Handle(context.Background(), node, nil, ec)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestDelayAction_Waits(t *testing.T) {
	action := NewDelayAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "delay", "duration_ms": float64(10)})

	start := time.Now()
	if err := action.Handle(context.Background(), node, nil, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected at least 10ms delay, got %v", elapsed)
	}
}

func TestDelayAction_CancelledContext(t *testing.T) {
	action := NewDelayAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "delay", "duration_ms": float64(60000)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := action.Handle(ctx, node, nil, ec)
	if !errors.Is(err, ErrActionCancelled) {
		t.Errorf("expected ErrActionCancelled, got %v", err)
	}
}

func TestDelayAction_InvalidDuration(t *testing.T) {
	action := NewDelayAction()
	ec, _ := newExecContext("orders/create")
	node := actionNode(map[string]any{"action": "delay"})

	err := action.Handle(context.Background(), node, nil, ec)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}
