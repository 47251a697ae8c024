package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type consumer struct {
	conn     Connection
	lgr      logger.Logger
	prefetch int
}

func NewConsumer(conn Connection, lgr logger.Logger, prefetch int) interfaces.EventConsumer {
	return &consumer{conn: conn, lgr: lgr, prefetch: prefetch}
}

// Consume binds queue to the topic exchange with the given routing-key
// patterns and dispatches deliveries until ctx is cancelled. On channel loss
// it backs off and reconnects; the durable queue keeps unacked messages.
func (c *consumer) Consume(ctx context.Context, queue string, bindings []string, handler interfaces.EventHandler) error {
	for {
		err := c.consumeOnce(ctx, queue, bindings, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		c.lgr.Error("consumer_disconnected", "Consumer disconnected, reconnecting in 5s", "", map[string]interface{}{
			"queue": queue,
		}, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *consumer) consumeOnce(ctx context.Context, queue string, bindings []string, handler interfaces.EventHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := c.declareTopology(ch, queue, bindings); err != nil {
		return err
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case amqpErr := <-closeChan:
			if amqpErr != nil {
				return fmt.Errorf("channel closed: %w", amqpErr)
			}
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.dispatch(ctx, queue, msg, handler)
		}
	}
}

func (c *consumer) dispatch(ctx context.Context, queue string, msg amqp.Delivery, handler interfaces.EventHandler) {
	var env interfaces.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		// Undecodable frames go to the DLQ; there is nothing to retry.
		c.lgr.Error("event_malformed", "Dropping undecodable event", "", map[string]interface{}{
			"queue": queue,
		}, err)
		msg.Nack(false, false)
		return
	}

	if err := handler(ctx, env); err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			c.lgr.Error("event_malformed", "Dropping malformed event", "", map[string]interface{}{
				"queue":       queue,
				"detail_type": env.DetailType,
			}, err)
			msg.Nack(false, false)
			return
		}
		// Transient failure: requeue for another attempt (at-least-once).
		c.lgr.Error("event_handler_failed", "Requeueing event after handler error", "", map[string]interface{}{
			"queue":       queue,
			"detail_type": env.DetailType,
		}, err)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

func (c *consumer) declareTopology(ch Channel, queue string, bindings []string) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	dlqExchange := Exchange + ".dlq"
	if err := ch.ExchangeDeclare(dlqExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	dlq := queue + "_dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlq, "#", dlqExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := amqp.Table{"x-dead-letter-exchange": dlqExchange}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, key := range bindings {
		if err := ch.QueueBind(queue, key, Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", queue, key, err)
		}
	}
	return nil
}
