package amqp

import (
	"context"
	"encoding/json"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

// AnalyticsHandler folds every workflow event into the metrics snapshots.
type AnalyticsHandler struct {
	analytics interfaces.AnalyticsService
}

func NewAnalyticsHandler(analytics interfaces.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Queue() string { return "analytics_sync" }

func (h *AnalyticsHandler) Bindings() []string {
	return []string{
		interfaces.RoutingKey(interfaces.EventOrderCreated),
		interfaces.RoutingKey(interfaces.EventOrderAssigned),
		interfaces.RoutingKey(interfaces.EventOrderCancelled),
		interfaces.RoutingKey(interfaces.EventKitchenMetricsUpdated),
		interfaces.RoutingKey(interfaces.EventDeliveryMetricsUpdated),
		interfaces.RoutingKey(interfaces.EventStaffUpdated),
	}
}

func (h *AnalyticsHandler) Handle(ctx context.Context, env interfaces.Envelope) error {
	if env.TenantID == "" {
		return domain.NewMalformedEventError(env.DetailType, "tenant_id")
	}

	switch env.DetailType {
	case interfaces.EventOrderCreated:
		var ev interfaces.OrderCreatedEvent
		if err := json.Unmarshal(env.Detail, &ev); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		if ev.OrderID == "" {
			return domain.NewMalformedEventError(env.DetailType, "id_order")
		}
		return h.analytics.RecordOrderCreated(ctx, env.TenantID, ev.OrderID)

	case interfaces.EventOrderAssigned:
		var ev interfaces.OrderAssignedEvent
		if err := json.Unmarshal(env.Detail, &ev); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		if ev.OrderID == "" || ev.StaffID == "" {
			return domain.NewMalformedEventError(env.DetailType, "id_order/id_staff")
		}
		return h.analytics.RecordOrderAssigned(ctx, env.TenantID, ev.OrderID, ev.StaffID)

	case interfaces.EventOrderCancelled:
		var ev interfaces.OrderCancelledEvent
		if err := json.Unmarshal(env.Detail, &ev); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		if ev.OrderID == "" {
			return domain.NewMalformedEventError(env.DetailType, "id_order")
		}
		return h.analytics.RecordOrderCancelled(ctx, env.TenantID, ev.OrderID)

	case interfaces.EventKitchenMetricsUpdated:
		var entries []interfaces.KitchenMetricEntry
		if err := json.Unmarshal(env.Detail, &entries); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		return h.analytics.RecordKitchenMetrics(ctx, env.TenantID, entries)

	case interfaces.EventDeliveryMetricsUpdated:
		var entries []interfaces.DeliveryMetricEntry
		if err := json.Unmarshal(env.Detail, &entries); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		return h.analytics.RecordDeliveryMetrics(ctx, env.TenantID, entries)

	case interfaces.EventStaffUpdated:
		var ev interfaces.StaffUpdatedEvent
		if err := json.Unmarshal(env.Detail, &ev); err != nil {
			return domain.NewMalformedEventError(env.DetailType, "detail")
		}
		if ev.StaffID == "" {
			return domain.NewMalformedEventError(env.DetailType, "id_staff")
		}
		return h.analytics.RecordStaffUpdate(ctx, env.TenantID, ev.StaffID, domain.StaffRole(ev.Role))
	}
	return nil
}
