package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventType — тип события в очереди.
type EventType string

// EventRunPending — run создан и ждёт исполнения.
const EventRunPending EventType = "run.pending"

// Заголовки AMQP сообщения, дублирующие поля события.
const (
	HeaderWorkflowID = "x-workflow-id"
	HeaderTrigger    = "x-trigger"
)

// RunEvent — тело сообщения о run.
//
// MessageId сообщения равен RunID: повторная публикация того же run
// видна в RabbitMQ как дубликат.
type RunEvent struct {
	Type       EventType `json:"type"`
	RunID      uuid.UUID `json:"run_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Trigger    string    `json:"trigger,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher публикует события runs в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// PublishRunPending публикует событие run.pending. Потребитель: Worker.
func (p *Publisher) PublishRunPending(ctx context.Context, event RunEvent) error {
	event.Type = EventRunPending
	if event.At.IsZero() {
		event.At = p.now().UTC()
	}
	return p.publish(ctx, ExchangeRuns, RoutingKeyPending, event)
}

func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, event RunEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, msg); err != nil {
			return fmt.Errorf("publish %s to %s/%s: %w", event.Type, exchange, routingKey, err)
		}

		p.logger.Debug("published event",
			"exchange", exchange,
			"type", event.Type,
			"run_id", event.RunID,
		)
		return nil
	})
}

// newPublishing собирает AMQP сообщение из события.
func newPublishing(event RunEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{HeaderWorkflowID: event.WorkflowID.String()}
	if event.Trigger != "" {
		headers[HeaderTrigger] = event.Trigger
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // переживает рестарт брокера
		MessageId:    event.RunID.String(),
		Type:         string(event.Type),
		Timestamp:    event.At,
		Headers:      headers,
		Body:         body,
	}, nil
}
