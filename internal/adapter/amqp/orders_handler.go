// Package amqp holds the inbound side of the bus: one handler per consuming
// service, each translating envelopes into service calls. A handler returns
// domain.ErrMalformedEvent to dead-letter a message and any other error to
// requeue it.
package amqp

import (
	"context"
	"encoding/json"
	"errors"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

// OrdersHandler closes the synchronization loop: status changes announced by
// kitchen and delivery are mirrored into the order ledger, covering the case
// where the publisher's direct mirror write failed.
type OrdersHandler struct {
	orders interfaces.OrderService
	logger logger.Logger
}

func NewOrdersHandler(orders interfaces.OrderService, lgr logger.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, logger: lgr}
}

func (h *OrdersHandler) Queue() string { return "orders_sync" }

func (h *OrdersHandler) Bindings() []string {
	return []string{
		interfaces.RoutingKey(interfaces.EventOrderUpdated),
		interfaces.RoutingKey(interfaces.EventOrderDelivered),
	}
}

func (h *OrdersHandler) Handle(ctx context.Context, env interfaces.Envelope) error {
	// The ledger's own announcements would be a pointless round trip.
	if env.Source == interfaces.SourceOrders {
		return nil
	}

	var orderID string
	var status domain.Status

	switch env.DetailType {
	case interfaces.EventOrderUpdated:
		var ev interfaces.OrderUpdatedEvent
		if err := json.Unmarshal(env.Detail, &ev); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		if ev.OrderID == "" || ev.Status == "" {
			return domain.NewMalformedEventError(env.DetailType, "id_order/status")
		}
		orderID, status = ev.OrderID, domain.Status(ev.Status)
	case interfaces.EventOrderDelivered:
		var ev interfaces.OrderDeliveredEvent
		if err := json.Unmarshal(env.Detail, &ev); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		if ev.OrderID == "" {
			return domain.NewMalformedEventError(env.DetailType, "id_order")
		}
		orderID, status = ev.OrderID, domain.StatusEntregado
	default:
		return nil
	}

	err := h.orders.MirrorStatus(ctx, env.TenantID, orderID, status)
	if errors.Is(err, domain.ErrNotFound) {
		// A mirror for an order the ledger never saw cannot succeed later.
		h.logger.Error("mirror_orphan", "Mirrored status for unknown order", "", map[string]interface{}{
			"id_order": orderID,
			"status":   string(status),
		}, err)
		return domain.NewMalformedEventError(env.DetailType, "id_order")
	}
	return err
}
