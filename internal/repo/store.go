package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

// EngineStore — адаптер репозиториев под engine.Store.
//
// Переводит ошибки репозитория в sentinel-ошибки движка:
// ErrAlreadyExists → engine.ErrExecutionExists, ErrNotFound →
// engine.ErrExecutionNotFound.
type EngineStore struct {
	executions *ExecutionRepo
	logs       *LogRepo
}

// NewEngineStore создаёт адаптер поверх репозиториев.
func NewEngineStore(executions *ExecutionRepo, logs *LogRepo) *EngineStore {
	return &EngineStore{executions: executions, logs: logs}
}

// CreateExecution сохраняет новый execution.
func (s *EngineStore) CreateExecution(ctx context.Context, ex *domain.Execution) error {
	if err := s.executions.Create(ctx, ex); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return engine.ErrExecutionExists
		}
		return err
	}
	return nil
}

// GetExecution возвращает execution по паре идемпотентности.
func (s *EngineStore) GetExecution(ctx context.Context, flowID uuid.UUID, externalEventID string) (*domain.Execution, error) {
	ex, err := s.executions.GetByEventID(ctx, flowID, externalEventID)
	if errors.Is(err, ErrNotFound) {
		return nil, engine.ErrExecutionNotFound
	}
	return ex, err
}

// UpdateExecution сохраняет изменённый execution.
func (s *EngineStore) UpdateExecution(ctx context.Context, ex *domain.Execution) error {
	err := s.executions.Update(ctx, ex)
	if errors.Is(err, ErrNotFound) {
		return engine.ErrExecutionNotFound
	}
	return err
}

// AppendLog добавляет запись в журнал выполнения.
func (s *EngineStore) AppendLog(ctx context.Context, entry *domain.ExecutionLog) error {
	return s.logs.Append(ctx, entry)
}
