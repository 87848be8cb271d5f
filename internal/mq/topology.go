package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns Exchange = "stepflow.runs"
	ExchangeDLQ  Exchange = "stepflow.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsPending Queue = "runs.pending"
	QueueDLQRuns     Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyPending RoutingKey = "pending"
	RoutingKeyDLQRuns RoutingKey = "runs"
)

// binding — привязка очереди к обменнику.
type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// Topology — объявляемые сущности RabbitMQ.
var (
	topologyExchanges = []Exchange{ExchangeRuns, ExchangeDLQ}

	topologyBindings = []binding{
		{QueueRunsPending, RoutingKeyPending, ExchangeRuns},
		{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
	}
)

// queueArgs возвращает аргументы объявления очереди.
// runs.pending отправляет отклонённые сообщения в dlq.runs.
func queueArgs(q Queue) amqp.Table {
	if q != QueueRunsPending {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range topologyExchanges {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range topologyBindings {
			_, err := ch.QueueDeclare(
				string(b.queue),    // name
				true,               // durable
				false,              // delete when unused
				false,              // exclusive
				false,              // no-wait
				queueArgs(b.queue), // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			err = ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Stepflow RabbitMQ Topology:

    stepflow.runs (direct)
    └── runs.pending [routing: pending]
            Consumer: stepflow-worker
            DLQ: dlq.runs

    stepflow.dlq (direct)
    └── dlq.runs [routing: runs]
            Manual processing
  `
}
