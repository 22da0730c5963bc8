package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ошибки уровня запуска. Срабатывание защит (цикл, глубина) и
// отсутствие триггера всегда фатальны для запуска — их нельзя
// перехватить error-веткой.
var (
	// ErrNoTriggerFound — в графе нет ни одного узла-триггера.
	ErrNoTriggerFound = errors.New("no trigger node found")

	// ErrCycleDetected — узел повторился на текущем пути обхода.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrMaxDepthExceeded — длина пути обхода превысила лимит.
	ErrMaxDepthExceeded = errors.New("max traversal depth exceeded")

	// ErrDuplicateEvent — событие с таким external_event_id уже
	// выполнялось для этого flow. Нефатальный сигнал: Run возвращает
	// существующий execution, side effects не повторяются.
	ErrDuplicateEvent = errors.New("duplicate event")
)

// CycleError — ошибка обнаружения цикла с ID узла-нарушителя.
type CycleError struct {
	NodeID uuid.UUID
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected at node %s", e.NodeID)
}

// Unwrap возвращает базовую ошибку для errors.Is.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// MaxDepthError — превышение лимита глубины обхода.
type MaxDepthError struct {
	NodeID   uuid.UUID // узел, на котором сработала защита
	Depth    int       // глубина, на которой остановился обход
	MaxDepth int       // настроенный лимит
}

// Error реализует интерфейс error.
func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("max depth %d exceeded at node %s (depth %d)", e.MaxDepth, e.NodeID, e.Depth)
}

// Unwrap возвращает базовую ошибку для errors.Is.
func (e *MaxDepthError) Unwrap() error {
	return ErrMaxDepthExceeded
}

// ActionError — ошибка выполнения действия на узле.
//
// Ошибка узлового уровня: если у узла есть исходящие error-рёбра,
// обход продолжается по ним и запуск остаётся здоровым; без
// error-рёбер ошибка эскалируется и фейлит весь запуск.
type ActionError struct {
	NodeID    uuid.UUID
	ActionKey string
	Err       error
}

// Error реализует интерфейс error.
func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q at node %s: %v", e.ActionKey, e.NodeID, e.Err)
}

// Unwrap возвращает ошибку действия.
func (e *ActionError) Unwrap() error {
	return e.Err
}
