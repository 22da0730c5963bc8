package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
)

// ErrExecutionExists — execution с такой парой (flow_id, external_event_id)
// уже существует. Store обязан вернуть эту ошибку из CreateExecution при
// нарушении уникальности; движок превращает её в ErrDuplicateEvent.
var ErrExecutionExists = errors.New("execution already exists")

// ErrExecutionNotFound — execution с такой парой не найден.
var ErrExecutionNotFound = errors.New("execution not found")

// Store — персистентность движка: executions и журнал выполнения.
//
// Контракт идемпотентности держится на CreateExecution: вставка с
// существующей парой (flow_id, external_event_id) должна атомарно
// вернуть ErrExecutionExists, а не создать дубликат. Реализация на
// Postgres опирается на уникальный индекс.
type Store interface {
	// CreateExecution сохраняет новый execution.
	// Возвращает ErrExecutionExists при дубликате (flow_id, external_event_id).
	CreateExecution(ctx context.Context, ex *domain.Execution) error

	// GetExecution возвращает execution по паре идемпотентности.
	GetExecution(ctx context.Context, flowID uuid.UUID, externalEventID string) (*domain.Execution, error)

	// UpdateExecution сохраняет изменённые статус, счётчики и времена.
	UpdateExecution(ctx context.Context, ex *domain.Execution) error

	// AppendLog добавляет запись в журнал выполнения.
	AppendLog(ctx context.Context, entry *domain.ExecutionLog) error
}
