package domain

import "time"

// DeliveryTask is the rider-side working record for an order, created when the
// kitchen marks the order ready. Address and customer data are a one-time copy
// from the order; they can go stale if the order is edited afterwards.
type DeliveryTask struct {
	TenantID      string
	ID            string
	OrderID       string
	StaffID       string
	Address       string
	CustomerID    string
	Status        Status
	AssignedAt    *time.Time
	TiempoSalida  *time.Time
	TiempoLlegada *time.Time
	LastLocation  *Location
	ProofURL      string
	ReceiptURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Location is a GPS ping from the rider's device.
type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDeliveryTask builds a task waiting for assignment.
func NewDeliveryTask(tenantID, id, orderID, address, customerID string, now time.Time) *DeliveryTask {
	if address == "" {
		address = "por_definir"
	}
	return &DeliveryTask{
		TenantID:   tenantID,
		ID:         id,
		OrderID:    orderID,
		Address:    address,
		CustomerID: customerID,
		Status:     StatusListoParaEntrega,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RouteDuration returns the dispatched-to-arrived span in minutes, and whether
// both endpoints are present and chronologically ordered.
func (d *DeliveryTask) RouteDuration() (float64, bool) {
	if d.TiempoSalida == nil || d.TiempoLlegada == nil || d.TiempoLlegada.Before(*d.TiempoSalida) {
		return 0, false
	}
	return d.TiempoLlegada.Sub(*d.TiempoSalida).Minutes(), true
}

// TrackableBy reports whether the rider may post GPS pings for this task.
// A task without an assigned rider accepts pings from nobody.
func (d *DeliveryTask) TrackableBy(staffID string) bool {
	return d.StaffID != "" && d.StaffID == staffID
}
