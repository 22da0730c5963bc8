package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
)

// MemStore — реализация Store в памяти.
//
// Используется в тестах движка и как запасной вариант для локального
// запуска без Postgres. Семантика идемпотентности совпадает с
// боевой реализацией: повторный CreateExecution с той же парой
// (flow_id, external_event_id) возвращает ErrExecutionExists.
type MemStore struct {
	mu         sync.Mutex
	executions map[uuid.UUID]*domain.Execution
	byEvent    map[eventKey]uuid.UUID
	logs       []*domain.ExecutionLog
	nextLogID  int64
}

type eventKey struct {
	flowID  uuid.UUID
	eventID string
}

// NewMemStore создаёт пустой MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		executions: make(map[uuid.UUID]*domain.Execution),
		byEvent:    make(map[eventKey]uuid.UUID),
	}
}

// CreateExecution сохраняет execution или возвращает ErrExecutionExists.
func (s *MemStore) CreateExecution(_ context.Context, ex *domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{flowID: ex.FlowID, eventID: ex.ExternalEventID}
	if _, ok := s.byEvent[key]; ok {
		return ErrExecutionExists
	}

	cp := *ex
	s.executions[ex.ID] = &cp
	s.byEvent[key] = ex.ID
	return nil
}

// GetExecution возвращает execution по паре идемпотентности.
func (s *MemStore) GetExecution(_ context.Context, flowID uuid.UUID, externalEventID string) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEvent[eventKey{flowID: flowID, eventID: externalEventID}]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	cp := *s.executions[id]
	return &cp, nil
}

// UpdateExecution сохраняет изменённый execution.
func (s *MemStore) UpdateExecution(_ context.Context, ex *domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.executions[ex.ID]; !ok {
		return ErrExecutionNotFound
	}
	cp := *ex
	s.executions[ex.ID] = &cp
	return nil
}

// AppendLog добавляет запись журнала.
func (s *MemStore) AppendLog(_ context.Context, entry *domain.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	cp := *entry
	cp.ID = s.nextLogID
	s.logs = append(s.logs, &cp)
	return nil
}

// Logs возвращает копию журнала в порядке вставки.
func (s *MemStore) Logs() []*domain.ExecutionLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.ExecutionLog, len(s.logs))
	copy(out, s.logs)
	return out
}
