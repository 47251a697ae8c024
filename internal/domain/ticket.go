package domain

import "time"

// KitchenTicket is the kitchen-side working record for an order, created when
// an Order.Created event is observed. Customer display fields are copied from
// the order once at creation; later edits to the order do not propagate.
type KitchenTicket struct {
	TenantID   string
	OrderID    string
	Status     Status
	StaffIDs   []string // append-only log of cooks who touched the ticket
	AcceptedBy string
	AcceptedAt *time.Time
	PackedBy   string
	PackedAt   *time.Time
	StartTime  *time.Time
	EndTime    *time.Time
	CustomerID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewKitchenTicket builds a fresh ticket in recibido.
func NewKitchenTicket(tenantID, orderID, customerID string, now time.Time) *KitchenTicket {
	return &KitchenTicket{
		TenantID:   tenantID,
		OrderID:    orderID,
		Status:     StatusRecibido,
		StaffIDs:   []string{},
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// PrepDuration returns the accepted-to-packed span in minutes, and whether both
// endpoints are present and chronologically ordered.
func (t *KitchenTicket) PrepDuration() (float64, bool) {
	if t.StartTime == nil || t.EndTime == nil || t.EndTime.Before(*t.StartTime) {
		return 0, false
	}
	return t.EndTime.Sub(*t.StartTime).Minutes(), true
}
