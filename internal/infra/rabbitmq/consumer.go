package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
)

type HandlerFunc func(ctx context.Context, env Envelope) error

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewConsumer declares a durable queue bound to the given routing keys.
func NewConsumer(amqpURL, exchange, queue string, routingKeys ...string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	setup := func() error {
		if err := declareExchange(channel, exchange); err != nil {
			return err
		}
		if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return err
		}
		for _, key := range routingKeys {
			if err := channel.QueueBind(queue, key, exchange, false, nil); err != nil {
				return err
			}
		}
		return channel.Qos(10, 0, false)
	}
	if err := setup(); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Consumer{conn: conn, channel: channel, queue: queue}, nil
}

// Run delivers messages to handle until ctx is done. A failed message is
// requeued once and dropped on its second failure.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.dispatch(ctx, d, handle)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		slog.ErrorContext(ctx, "dropping malformed message", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, env); err != nil {
		slog.ErrorContext(ctx, "message handler failed", "pattern", env.Pattern, "message_id", env.ID, "redelivered", d.Redelivered, "error", err)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
