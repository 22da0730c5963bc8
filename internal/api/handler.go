package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/mq"
	"github.com/korzhev/Cascade/internal/repo"
)

// FlowStore — операции с flows, нужные API.
type FlowStore interface {
	Create(ctx context.Context, flow *domain.Flow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
	List(ctx context.Context, filter repo.FlowFilter) ([]domain.Flow, error)
	Update(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListActiveByTopic(ctx context.Context, topic string) ([]domain.Flow, error)
	ReplaceGraph(ctx context.Context, flowID uuid.UUID, nodes []domain.Node, edges []domain.Edge) error
}

// ExecutionStore — операции с executions, нужные API.
type ExecutionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	List(ctx context.Context, filter repo.ExecutionFilter) ([]domain.Execution, error)
}

// LogStore — чтение журнала выполнения.
type LogStore interface {
	ListByExecutionID(ctx context.Context, executionID uuid.UUID) ([]domain.ExecutionLog, error)
}

// EventPublisher — публикация входящих событий для runner.
type EventPublisher interface {
	PublishEventInbound(ctx context.Context, payload mq.EventInboundPayload) error
}

// Handler — HTTP handler API.
type Handler struct {
	flows      FlowStore
	executions ExecutionStore
	logs       LogStore
	publisher  EventPublisher
	logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(flows FlowStore, executions ExecutionStore, logs LogStore, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		flows:      flows,
		executions: executions,
		logs:       logs,
		publisher:  publisher,
		logger:     logger,
	}
}
