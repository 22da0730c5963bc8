package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — один запуск flow по одному входящему событию.
//
// Execution создаётся движком в начале обхода и мутируется только
// владеющим запуском; после перехода в терминальный статус запись
// неизменяема. Пара (flow_id, external_event_id) уникальна: повторная
// доставка того же события не создаёт второй Execution.
type Execution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на flow, который выполняется.
	FlowID uuid.UUID `json:"flow_id"`

	// Topic — имя события, активировавшего триггер (например, "orders/create").
	Topic string `json:"topic"`

	// ExternalEventID — ключ идемпотентности, назначенный источником события.
	ExternalEventID string `json:"external_event_id"`

	// Payload — снапшот тела события на момент запуска.
	Payload map[string]any `json:"payload,omitempty"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// NodesExecuted — количество посещённых узлов.
	NodesExecuted int `json:"nodes_executed"`

	// ActionsCompleted — количество успешно выполненных действий.
	ActionsCompleted int `json:"actions_completed"`

	// Error — текст ошибки, если execution завершился с failed.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала обхода.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution в терминальном статусе.
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в статус running.
func (e *Execution) MarkRunning() {
	now := time.Now()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// MarkSuccess переводит execution в статус success.
func (e *Execution) MarkSuccess() {
	now := time.Now()
	e.Status = ExecutionStatusSuccess
	e.FinishedAt = &now
}

// MarkFailed переводит execution в статус failed с текстом ошибки.
// Счётчики уже посещённых узлов и выполненных действий сохраняются.
func (e *Execution) MarkFailed(errMsg string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.FinishedAt = &now
	e.Error = errMsg
}

// LogLevel — уровень записи журнала выполнения.
type LogLevel string

const (
	// LogLevelInfo — обычная запись о ходе выполнения.
	LogLevelInfo LogLevel = "info"

	// LogLevelWarning — нефатальная проблема (действие ушло на error-ветку).
	LogLevelWarning LogLevel = "warning"

	// LogLevelError — ошибка узла или запуска.
	LogLevelError LogLevel = "error"
)

// ExecutionLog — одна запись журнала выполнения (audit trail).
//
// Записи append-only и упорядочены по вставке; читаются внешним
// UI наблюдаемости для разбора того, какой узел и какая ветка
// привели к результату.
type ExecutionLog struct {
	// ID — порядковый идентификатор записи (порядок вставки).
	ID int64 `json:"id"`

	// ExecutionID — ссылка на execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// NodeID — узел, к которому относится запись. Nil для записей уровня запуска.
	NodeID *uuid.UUID `json:"node_id,omitempty"`

	// Level — уровень записи: info, warning, error.
	Level LogLevel `json:"level"`

	// Message — человекочитаемое сообщение.
	Message string `json:"message"`

	// Data — структурированные детали (результаты правил, ключ действия и т.д.).
	Data map[string]any `json:"data,omitempty"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}
