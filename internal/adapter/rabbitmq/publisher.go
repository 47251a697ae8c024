package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"orderflow/internal/interfaces"
)

type publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) interfaces.EventPublisher {
	return &publisher{conn: conn}
}

// Publish wraps the detail in the event envelope and routes it by the
// lowercased detail type on the workflow topic exchange. Delivery is
// at-least-once from the consumer's point of view; the publish itself is a
// single attempt and callers on the workflow path treat failure as
// best-effort.
func (p *publisher) Publish(ctx context.Context, source, detailType, tenantID string, detail any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	rawDetail, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal detail: %w", err)
	}
	body, err := json.Marshal(interfaces.Envelope{
		Source:     source,
		DetailType: detailType,
		TenantID:   tenantID,
		Detail:     rawDetail,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	err = ch.Publish(Exchange, interfaces.RoutingKey(detailType), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", detailType, err)
	}
	return nil
}
