package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/punchflow/punchflow/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Disposition is what happens to a delivery after processing.
type Disposition int

const (
	Ack Disposition = iota
	Requeue
	DeadLetter
)

// DefaultMaxRetries bounds the dead-letter round trips recorded in x-death.
const DefaultMaxRetries = 3

// Delivery is the part of an AMQP delivery the consumer looks at.
type Delivery struct {
	Body        []byte
	Headers     amqp.Table
	Redelivered bool
}

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq        *RabbitMQ
	queueName  string
	handlers   map[string]MessageHandler
	maxRetries int
	logger     *logger.Logger
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if rmq != nil {
		if err := rmq.DeclareDeadLetterQueue(queueName); err != nil {
			return nil, err
		}
		if _, err := rmq.DeclareQueue(queueName); err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}
	}

	return &Consumer{
		rmq:        rmq,
		queueName:  queueName,
		handlers:   make(map[string]MessageHandler),
		maxRetries: DefaultMaxRetries,
		logger:     log,
	}, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Run consumes messages until ctx is cancelled or the channel closes.
// Deliveries are handled one at a time.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.rmq.Channel().ConsumeWithContext(ctx,
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.settle(msg, c.Process(ctx, Delivery{Body: msg.Body, Headers: msg.Headers, Redelivered: msg.Redelivered}))
		}
	}
}

func (c *Consumer) settle(msg amqp.Delivery, d Disposition) {
	var err error
	switch d {
	case Ack:
		err = msg.Ack(false)
	case Requeue:
		err = msg.Nack(false, true)
	case DeadLetter:
		err = msg.Reject(false)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to settle delivery")
	}
}

// Process decodes one delivery and runs its handler. A failed delivery is
// requeued once; a redelivery that fails again is dead-lettered.
func (c *Consumer) Process(ctx context.Context, d Delivery) Disposition {
	var event Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		return DeadLetter
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return Ack
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		retryCount := RetryCount(d.Headers)
		if d.Redelivered || retryCount >= c.maxRetries {
			c.logger.Warn().
				Str("event_id", event.ID).
				Int("retry_count", retryCount).
				Msg("max retries exceeded, sending to DLQ")
			return DeadLetter
		}
		return Requeue
	}

	return Ack
}

// RetryCount reads the broker's x-death bookkeeping.
func RetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	if deaths, ok := headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
