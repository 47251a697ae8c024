package interfaces

import (
	"context"
	"time"

	"orderflow/internal/domain"
)

// Store contracts. Every method is tenant-scoped; status-mutating writes are
// conditional (set iff the current status is in the allowed predecessor set) so
// re-delivered events and racing actors cannot duplicate or regress a
// transition. A conditional write that matches no row on an existing record
// returns domain.ErrConcurrentModification.

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Order, error)
	ListByCustomer(ctx context.Context, tenantID, customerID string) ([]*domain.Order, error)
	// UpdateStatus sets status iff the current status is in from.
	UpdateStatus(ctx context.Context, tenantID, orderID string, status domain.Status, from []domain.Status, now time.Time) error
	// SetConfirmation latches one of the two delivery-confirmation flags.
	SetConfirmation(ctx context.Context, tenantID, orderID string, byStaff bool, now time.Time) error
}

type TicketRepository interface {
	// CreateIfAbsent is a no-op when a ticket for the order already exists.
	CreateIfAbsent(ctx context.Context, ticket *domain.KitchenTicket) error
	Get(ctx context.Context, tenantID, orderID string) (*domain.KitchenTicket, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.KitchenTicket, error)
	ListByStatus(ctx context.Context, tenantID string, status domain.Status) ([]*domain.KitchenTicket, error)
	// Accept conditionally moves the ticket to en_preparacion and records the
	// accepting cook; the staff id is appended to the log only if absent.
	Accept(ctx context.Context, tenantID, orderID, staffID string, now time.Time) error
	// Pack conditionally moves the ticket to listo_para_entrega and records the
	// packing cook; packed_by is kept on re-delivery (set-if-absent).
	Pack(ctx context.Context, tenantID, orderID, staffID string, now time.Time) error
}

type DeliveryRepository interface {
	// CreateIfAbsent is keyed on the order id: a second task for the same order
	// is never created.
	CreateIfAbsent(ctx context.Context, task *domain.DeliveryTask) error
	Get(ctx context.Context, tenantID, deliveryID string) (*domain.DeliveryTask, error)
	GetByOrder(ctx context.Context, tenantID, orderID string) (*domain.DeliveryTask, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.DeliveryTask, error)
	ListByStatus(ctx context.Context, tenantID string, status domain.Status) ([]*domain.DeliveryTask, error)
	Assign(ctx context.Context, tenantID, deliveryID, staffID string, now time.Time) error
	MarkEnRoute(ctx context.Context, tenantID, deliveryID string, now time.Time) error
	MarkDelivered(ctx context.Context, tenantID, deliveryID, proofURL string, now time.Time) error
	UpdateLocation(ctx context.Context, tenantID, deliveryID string, loc domain.Location, now time.Time) error
}

type MetricRepository interface {
	Put(ctx context.Context, metric *domain.AnalyticsMetric) error
	GetByOrder(ctx context.Context, tenantID, orderID string) (*domain.AnalyticsMetric, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.AnalyticsMetric, error)
}

type StaffRepository interface {
	ListAvailableRiders(ctx context.Context, tenantID string) ([]*domain.StaffMember, error)
}

// ArtifactStore persists receipt and proof-of-delivery blobs. Writes on the
// workflow path are best-effort; the real backend is an external collaborator.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (url string, err error)
}
