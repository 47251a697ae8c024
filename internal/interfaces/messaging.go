package interfaces

import (
	"context"
	"encoding/json"
	"strings"
)

// Event sources.
const (
	SourceOrders    = "orders-svc"
	SourceKitchen   = "kitchen-svc"
	SourceDelivery  = "delivery-svc"
	SourceAnalytics = "analytics-svc"
)

// Event detail types. Routing keys on the bus are the lowercased detail type.
const (
	EventOrderCreated           = "Order.Created"
	EventOrderUpdated           = "Order.Updated"
	EventOrderCancelled         = "Order.Cancelled"
	EventOrderPrepared          = "Order.Prepared"
	EventOrderAssigned          = "Order.Assigned"
	EventOrderEnRoute           = "Order.EnRoute"
	EventOrderDelivered         = "Order.Delivered"
	EventKitchenMetricsUpdated  = "Kitchen.MetricsUpdated"
	EventDeliveryMetricsUpdated = "Delivery.MetricsUpdated"
	EventStaffUpdated           = "Staff.Updated"
)

// Envelope is the wire frame for every bus message.
type Envelope struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detail_type"`
	TenantID   string          `json:"tenant_id"`
	Detail     json.RawMessage `json:"detail"`
}

// RoutingKey derives the topic routing key for a detail type.
func RoutingKey(detailType string) string {
	return strings.ToLower(detailType)
}

// Event payloads. Field names follow the store schemas so consumers and
// dashboards share one vocabulary.

type OrderCreatedEvent struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"id_order"`
}

type OrderUpdatedEvent struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"id_order"`
	Status   string `json:"status"`
}

type OrderCancelledEvent struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"id_order"`
}

type OrderPreparedEvent struct {
	TenantID   string `json:"tenant_id"`
	OrderID    string `json:"order_id"`
	PackedBy   string `json:"packed_by,omitempty"`
	Address    string `json:"direccion,omitempty"`
	CustomerID string `json:"id_customer,omitempty"`
}

type OrderAssignedEvent struct {
	TenantID   string `json:"tenant_id"`
	DeliveryID string `json:"id_delivery"`
	OrderID    string `json:"id_order"`
	StaffID    string `json:"id_staff"`
}

type OrderEnRouteEvent struct {
	TenantID   string `json:"tenant_id"`
	OrderID    string `json:"id_order"`
	DeliveryID string `json:"id_delivery"`
}

type OrderDeliveredEvent struct {
	TenantID   string `json:"tenant_id"`
	OrderID    string `json:"id_order"`
	DeliveryID string `json:"id_delivery"`
	ProofURL   string `json:"proof_url,omitempty"`
}

// KitchenMetricEntry is one element of a Kitchen.MetricsUpdated batch.
type KitchenMetricEntry struct {
	OrderID     string  `json:"order_id"`
	TenantID    string  `json:"tenant_id"`
	TiempoTotal float64 `json:"tiempo_total"`
}

// DeliveryMetricEntry is one element of a Delivery.MetricsUpdated batch.
type DeliveryMetricEntry struct {
	OrderID       string  `json:"order_id"`
	TenantID      string  `json:"tenant_id"`
	StaffID       string  `json:"id_staff"`
	TiempoEntrega float64 `json:"tiempo_entrega"`
}

type StaffUpdatedEvent struct {
	StaffID  string `json:"id_staff"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// EventPublisher fans a typed event out on the bus. Publication on the
// workflow path is best-effort: callers log and swallow failures.
type EventPublisher interface {
	Publish(ctx context.Context, source, detailType, tenantID string, detail any) error
}

// EventHandler processes one inbound envelope. Returning
// domain.ErrMalformedEvent drops the message; any other error requeues it.
type EventHandler func(ctx context.Context, env Envelope) error

// EventConsumer binds a queue to detail-type patterns and dispatches
// deliveries to the handler until the context is cancelled.
type EventConsumer interface {
	Consume(ctx context.Context, queue string, bindings []string, handler EventHandler) error
}
