package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

const (
	// ActionKeyDelay — ключ действия паузы.
	ActionKeyDelay = "delay"

	// maxDelay — верхняя граница паузы. Запуск синхронный,
	// длинная пауза держит consumer-воркер занятым.
	maxDelay = 5 * time.Minute
)

// Ключ настроек действия delay.
const settingDurationMS = "duration_ms"

// DelayAction — действие паузы внутри запуска.
//
//	{"action": "delay", "duration_ms": 1500}
type DelayAction struct{}

// NewDelayAction создаёт DelayAction.
func NewDelayAction() *DelayAction {
	return &DelayAction{}
}

// Key возвращает ключ действия.
func (a *DelayAction) Key() string {
	return ActionKeyDelay
}

// Handle ждёт указанное время или отмену контекста.
func (a *DelayAction) Handle(ctx context.Context, node *domain.Node, _ map[string]any, _ *engine.ExecContext) error {
	ms := node.SettingInt(settingDurationMS)
	if ms <= 0 {
		return fmt.Errorf("%w: %s: duration_ms must be positive", ErrInvalidSettings, ActionKeyDelay)
	}

	duration := time.Duration(ms) * time.Millisecond
	if duration > maxDelay {
		duration = maxDelay
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrActionCancelled, ctx.Err())
	}
}
