package runner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
	"github.com/korzhev/Cascade/internal/mq"
	"github.com/korzhev/Cascade/internal/repo"
	"github.com/korzhev/Cascade/internal/telemetry"
)

// FlowSource — источник снапшотов flow.
type FlowSource interface {
	GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
}

// FinishedPublisher — публикация уведомлений о завершённых executions.
type FinishedPublisher interface {
	PublishExecutionFinished(ctx context.Context, payload mq.ExecutionFinishedPayload) error
}

// Runner — сервис выполнения flows.
//
// Потребляет входящие события из events.inbound, загружает снапшот
// flow, запускает движок и публикует уведомление о завершении в
// executions.finished. Параллелизм задаётся prefetch очереди:
// идемпотентность движка позволяет безопасно запускать несколько
// экземпляров runner.
type Runner struct {
	engine    *engine.Engine
	flows     FlowSource
	publisher FinishedPublisher
	conn      *mq.Connection
	logger    *slog.Logger
	prefetch  int

	consumer *mq.Consumer
}

// Config — конфигурация Runner.
type Config struct {
	// Prefetch — количество событий, обрабатываемых одним runner
	// одновременно.
	Prefetch int
}

// New создаёт Runner.
func New(eng *engine.Engine, flows FlowSource, publisher FinishedPublisher, conn *mq.Connection, logger *slog.Logger, cfg Config) *Runner {
	return &Runner{
		engine:    eng,
		flows:     flows,
		publisher: publisher,
		conn:      conn,
		logger:    logger,
		prefetch:  cfg.Prefetch,
	}
}

// Start запускает потребление событий. Блокирует до отмены контекста.
func (r *Runner) Start(ctx context.Context) error {
	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueEventsInbound),
		Handler:  r.handleMessage,
		Prefetch: r.prefetch,
	})

	r.logger.Info("runner started", "queue", mq.QueueEventsInbound)
	return r.consumer.Start(ctx)
}

// Stop останавливает runner.
func (r *Runner) Stop() {
	if r.consumer != nil {
		r.consumer.Stop()
	}
}

// handleMessage обрабатывает одно входящее событие.
//
// Возврат ошибки ведёт к requeue — только для временных отказов
// (БД недоступна). Постоянные исходы (дубликат, нет триггера,
// удалённый или неактивный flow) подтверждаются без повтора.
func (r *Runner) handleMessage(ctx context.Context, d *mq.Delivery) error {
	if d.Message.Type != mq.MessageTypeEventInbound {
		r.logger.Warn("unexpected message type, skipping", "type", d.Message.Type)
		return nil
	}

	event, err := mq.ParsePayload[mq.EventInboundPayload](&d.Message)
	if err != nil {
		// Битый payload повторять бессмысленно
		r.logger.Error("failed to parse event payload", "message_id", d.Message.ID, "error", err)
		telemetry.EventsConsumed.WithLabelValues("malformed").Inc()
		return nil
	}

	logger := telemetry.WithFlowID(r.logger, event.FlowID.String())

	flow, err := r.flows.GetSnapshot(ctx, event.FlowID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn("flow not found, dropping event", "external_event_id", event.ExternalEventID)
		telemetry.EventsConsumed.WithLabelValues("flow_missing").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	if !flow.IsActive {
		logger.Info("flow is inactive, dropping event", "external_event_id", event.ExternalEventID)
		telemetry.EventsConsumed.WithLabelValues("flow_inactive").Inc()
		return nil
	}

	res, err := r.engine.Run(ctx, flow, event.Payload, event.Topic, event.ExternalEventID)
	switch {
	case errors.Is(err, engine.ErrDuplicateEvent):
		telemetry.EventsConsumed.WithLabelValues("duplicate").Inc()
		return nil

	case errors.Is(err, engine.ErrNoTriggerFound):
		// Постоянный отказ: flow без триггера не станет лучше от retry
		telemetry.EventsConsumed.WithLabelValues("no_trigger").Inc()
		r.recordAndNotify(ctx, logger, res.Execution)
		return nil

	case err != nil:
		// Отказ персистентности — событие вернётся в очередь
		logger.Error("run failed before traversal", "error", err)
		return err
	}

	telemetry.EventsConsumed.WithLabelValues("processed").Inc()
	r.recordAndNotify(ctx, logger, res.Execution)
	return nil
}

// recordAndNotify фиксирует метрики и публикует уведомление о
// завершённом execution. Ошибка публикации не ведёт к requeue:
// запуск уже состоялся.
func (r *Runner) recordAndNotify(ctx context.Context, logger *slog.Logger, ex *domain.Execution) {
	telemetry.ExecutionsTotal.WithLabelValues(string(ex.Status)).Inc()
	telemetry.ExecutionDuration.Observe(ex.Duration().Seconds())

	err := r.publisher.PublishExecutionFinished(ctx, mq.ExecutionFinishedPayload{
		ExecutionID:      ex.ID,
		FlowID:           ex.FlowID,
		Status:           ex.Status,
		Error:            ex.Error,
		NodesExecuted:    ex.NodesExecuted,
		ActionsCompleted: ex.ActionsCompleted,
	})
	if err != nil {
		logger.Error("failed to publish execution finished",
			"execution_id", ex.ID.String(),
			"error", err,
		)
	}
}
