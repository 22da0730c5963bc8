package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/korzhev/Cascade/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEventInbound      MessageType = "event.inbound"
	MessageTypeExecutionFinished MessageType = "execution.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// EventInboundPayload — payload входящего события для запуска flow.
type EventInboundPayload struct {
	FlowID          uuid.UUID      `json:"flow_id"`
	Topic           string         `json:"topic"`
	ExternalEventID string         `json:"external_event_id"`
	Payload         map[string]any `json:"payload,omitempty"`
}

// ExecutionFinishedPayload — payload уведомления о завершённом execution.
type ExecutionFinishedPayload struct {
	ExecutionID      uuid.UUID              `json:"execution_id"`
	FlowID           uuid.UUID              `json:"flow_id"`
	Status           domain.ExecutionStatus `json:"status"`
	Error            string                 `json:"error,omitempty"`
	NodesExecuted    int                    `json:"nodes_executed"`
	ActionsCompleted int                    `json:"actions_completed"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishEventInbound публикует входящее событие для запуска flow.
// Потребитель: Runner.
func (p *Publisher) PublishEventInbound(ctx context.Context, payload EventInboundPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEventInbound,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyInbound, msg)
}

// PublishExecutionFinished публикует уведомление о завершённом execution.
// Потребители: внешние системы наблюдаемости и нотификаций.
func (p *Publisher) PublishExecutionFinished(ctx context.Context, payload ExecutionFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecutionFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyFinished, msg)
}
