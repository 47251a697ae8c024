package amqp

import (
	"context"
	"encoding/json"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

// KitchenHandler seeds a ticket for every created order.
type KitchenHandler struct {
	kitchen interfaces.KitchenService
}

func NewKitchenHandler(kitchen interfaces.KitchenService) *KitchenHandler {
	return &KitchenHandler{kitchen: kitchen}
}

func (h *KitchenHandler) Queue() string { return "kitchen_sync" }

func (h *KitchenHandler) Bindings() []string {
	return []string{interfaces.RoutingKey(interfaces.EventOrderCreated)}
}

func (h *KitchenHandler) Handle(ctx context.Context, env interfaces.Envelope) error {
	var ev interfaces.OrderCreatedEvent
	if err := json.Unmarshal(env.Detail, &ev); err != nil {
		return domain.NewMalformedEventError(env.DetailType, "detail")
	}
	if ev.OrderID == "" {
		return domain.NewMalformedEventError(env.DetailType, "id_order")
	}

	tenantID := env.TenantID
	if tenantID == "" {
		tenantID = ev.TenantID
	}
	if tenantID == "" {
		return domain.NewMalformedEventError(env.DetailType, "tenant_id")
	}

	return h.kitchen.ReceiveOrder(ctx, tenantID, ev.OrderID)
}
