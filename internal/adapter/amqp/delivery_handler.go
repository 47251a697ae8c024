package amqp

import (
	"context"
	"encoding/json"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

// DeliveryHandler seeds a task for every packed order.
type DeliveryHandler struct {
	delivery interfaces.DeliveryService
}

func NewDeliveryHandler(delivery interfaces.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{delivery: delivery}
}

func (h *DeliveryHandler) Queue() string { return "delivery_sync" }

func (h *DeliveryHandler) Bindings() []string {
	return []string{interfaces.RoutingKey(interfaces.EventOrderPrepared)}
}

func (h *DeliveryHandler) Handle(ctx context.Context, env interfaces.Envelope) error {
	var ev interfaces.OrderPreparedEvent
	if err := json.Unmarshal(env.Detail, &ev); err != nil {
		return domain.NewMalformedEventError(env.DetailType, "detail")
	}
	if ev.OrderID == "" {
		return domain.NewMalformedEventError(env.DetailType, "order_id")
	}

	tenantID := env.TenantID
	if tenantID == "" {
		tenantID = ev.TenantID
	}
	if tenantID == "" {
		return domain.NewMalformedEventError(env.DetailType, "tenant_id")
	}

	_, err := h.delivery.ReceivePreparedOrder(ctx, tenantID, ev.OrderID, ev.Address, ev.CustomerID)
	return err
}
