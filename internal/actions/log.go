package actions

import (
	"context"
	"fmt"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

// ActionKeyLog — ключ действия записи в журнал.
const ActionKeyLog = "log"

// Ключи настроек действия log.
const (
	settingMessage = "message"
	settingLevel   = "level"
)

// LogAction — действие записи сообщения в журнал выполнения.
//
// Сообщение проходит шаблонный резолвер:
//
//	{"action": "log", "message": "Order {{ order.id }} tagged", "level": "info"}
type LogAction struct{}

// NewLogAction создаёт LogAction.
func NewLogAction() *LogAction {
	return &LogAction{}
}

// Key возвращает ключ действия.
func (a *LogAction) Key() string {
	return ActionKeyLog
}

// Handle пишет разрешённое сообщение в журнал выполнения.
func (a *LogAction) Handle(ctx context.Context, node *domain.Node, payload map[string]any, ec *engine.ExecContext) error {
	message := node.SettingString(settingMessage)
	if message == "" {
		return fmt.Errorf("%w: %s: message is required", ErrInvalidSettings, ActionKeyLog)
	}

	level := domain.LogLevel(node.SettingString(settingLevel))
	switch level {
	case domain.LogLevelInfo, domain.LogLevelWarning, domain.LogLevelError:
	default:
		level = domain.LogLevelInfo
	}

	ec.Log(ctx, &node.ID, level, engine.ResolveTemplate(message, payload), nil)
	return nil
}
