package runner

import (
	"context"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
	"github.com/korzhev/Cascade/internal/telemetry"
)

// MeteredDispatcher оборачивает диспетчер действий метриками.
type MeteredDispatcher struct {
	inner engine.Dispatcher
}

// NewMeteredDispatcher создаёт обёртку над диспетчером.
func NewMeteredDispatcher(inner engine.Dispatcher) *MeteredDispatcher {
	return &MeteredDispatcher{inner: inner}
}

// Dispatch выполняет действие и фиксирует исход в метриках.
func (m *MeteredDispatcher) Dispatch(ctx context.Context, node *domain.Node, payload map[string]any, ec *engine.ExecContext) error {
	err := m.inner.Dispatch(ctx, node, payload, ec)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	telemetry.ActionsTotal.WithLabelValues(node.ActionKey(), outcome).Inc()

	return err
}
