package domain

// ExecutionStatus — статус выполнения execution.
//
// Жизненный цикл:
//
//	running → success
//	        ↘ failed
//
// Промежуточного ("partial") статуса нет: необработанная ошибка
// действия или срабатывание защитного лимита фейлит весь запуск,
// даже если более ранние действия уже произвели side effects.
// Компенсации/отката нет — семантика at-least-once.
type ExecutionStatus string

const (
	// ExecutionStatusRunning — execution в процессе обхода графа.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusSuccess — обход завершён без необработанных ошибок.
	ExecutionStatusSuccess ExecutionStatus = "success"

	// ExecutionStatusFailed — необработанная ошибка действия или
	// срабатывание защиты (цикл, глубина, отсутствие триггера).
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed:
		return true
	default:
		return false
	}
}
