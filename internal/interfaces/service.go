package interfaces

import (
	"context"
	"time"

	"orderflow/internal/domain"
)

// Commands and responses shared between the HTTP layer and the services.

type CreateOrderCommand struct {
	TenantID   string
	CustomerID string
	ProductIDs []string
	Items      []domain.OrderItem
	Actor      domain.Actor
}

type UpdateOrderStatusCommand struct {
	TenantID string
	OrderID  string
	Status   domain.Status
	Actor    domain.Actor
}

type AssignDeliveryCommand struct {
	TenantID   string
	DeliveryID string
	Actor      domain.Actor
}

type ConfirmDeliveredCommand struct {
	TenantID   string
	DeliveryID string
	ProofData  []byte // optional JPEG bytes, stored best-effort
	Actor      domain.Actor
}

type RiderLocationCommand struct {
	TenantID string
	OrderID  string
	Lat      float64
	Lon      float64
	Actor    domain.Actor
}

type OrderStatusResponse struct {
	OrderID   string        `json:"id_order"`
	Status    domain.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	Delivery  *DeliveryInfo `json:"delivery,omitempty"`
}

type DeliveryInfo struct {
	DeliveryID    string           `json:"id_delivery"`
	Status        domain.Status    `json:"status"`
	Address       string           `json:"direccion"`
	StaffID       string           `json:"id_staff,omitempty"`
	TiempoSalida  *time.Time       `json:"tiempo_salida,omitempty"`
	TiempoLlegada *time.Time       `json:"tiempo_llegada,omitempty"`
	Location      *domain.Location `json:"location,omitempty"`
}

// StageAggregate is the per-stage timing summary of the KPI projection.
// Zero samples reports all-zero fields, never null.
type StageAggregate struct {
	Count  int     `json:"count"`
	AvgMin float64 `json:"avg_min"`
	P50Min float64 `json:"p50_min"`
	P95Min float64 `json:"p95_min"`
}

type WorkflowKPIs struct {
	TenantID string                    `json:"tenant_id"`
	Timings  map[string]StageAggregate `json:"timings"`
	Actors   ActorTallies              `json:"responsables"`
}

// Stage names of the Timings map.
const (
	StageRecibidoAAceptado = "recibido_a_aceptado"
	StageAceptadoAEmpacado = "aceptado_a_empacado"
	StageEmpacadoASalida   = "empacado_a_salida"
	StageSalidaAEntregado  = "salida_a_entregado"
)

type ActorTallies struct {
	AcceptedBy  map[string]int `json:"accepted_by"`
	PackedBy    map[string]int `json:"packed_by"`
	DeliveredBy map[string]int `json:"delivered_by"`
}

type DashboardSummary struct {
	TenantID            string    `json:"tenant_id"`
	PedidosTotal        int       `json:"pedidos_total"`
	EmpleadosActivos    int       `json:"empleados_activos"`
	EntregasCompletadas int       `json:"entregas_completadas"`
	Timestamp           time.Time `json:"timestamp"`
}

// Service contracts, one per store-owning component.

type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) error
	CancelOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) error
	ConfirmDelivered(ctx context.Context, tenantID, orderID string, actor domain.Actor) error
	CheckConfirmations(ctx context.Context, tenantID, orderID string) (domain.Confirmations, error)
	GetOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) (*domain.Order, error)
	GetOrderStatus(ctx context.Context, tenantID, orderID string, actor domain.Actor) (*OrderStatusResponse, error)
	ListCustomerOrders(ctx context.Context, tenantID string, actor domain.Actor) ([]*domain.Order, error)
	// MirrorStatus applies a status observed on the bus to the ledger,
	// forward-only; statuses already reached are absorbed silently.
	MirrorStatus(ctx context.Context, tenantID, orderID string, status domain.Status) error
}

type KitchenService interface {
	ReceiveOrder(ctx context.Context, tenantID, orderID string) error
	AcceptOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) error
	PackOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) error
	GetQueue(ctx context.Context, tenantID string) ([]*domain.KitchenTicket, error)
	SyncMetrics(ctx context.Context, tenantID string) (int, error)
}

type DeliveryService interface {
	ReceivePreparedOrder(ctx context.Context, tenantID, orderID, address, customerID string) (*domain.DeliveryTask, error)
	AssignDelivery(ctx context.Context, cmd AssignDeliveryCommand) (*domain.DeliveryTask, error)
	HandoffOrder(ctx context.Context, tenantID, deliveryID string, actor domain.Actor) error
	ConfirmDelivered(ctx context.Context, cmd ConfirmDeliveredCommand) (*domain.DeliveryTask, error)
	UpdateRiderLocation(ctx context.Context, cmd RiderLocationCommand) (*domain.DeliveryTask, error)
	GetDeliveryStatus(ctx context.Context, tenantID, deliveryID string) (*domain.DeliveryTask, error)
	ListDeliveries(ctx context.Context, tenantID string) ([]*domain.DeliveryTask, error)
	SyncMetrics(ctx context.Context, tenantID string) (int, error)
}

type AnalyticsService interface {
	GetWorkflowKPIs(ctx context.Context, tenantID string) (*WorkflowKPIs, error)
	GetDashboard(ctx context.Context, tenantID string) (*DashboardSummary, error)

	// Bus-facing ingest. Each handler is idempotent under re-delivery.
	RecordOrderCreated(ctx context.Context, tenantID, orderID string) error
	RecordOrderAssigned(ctx context.Context, tenantID, orderID, staffID string) error
	RecordOrderCancelled(ctx context.Context, tenantID, orderID string) error
	RecordKitchenMetrics(ctx context.Context, tenantID string, entries []KitchenMetricEntry) error
	RecordDeliveryMetrics(ctx context.Context, tenantID string, entries []DeliveryMetricEntry) error
	RecordStaffUpdate(ctx context.Context, tenantID, staffID string, role domain.StaffRole) error
}
