package domain

import "time"

// AnalyticsMetric is a denormalized snapshot of an order's progress, refreshed
// (not appended) as the order advances. Dashboards read it without touching the
// three trackers.
type AnalyticsMetric struct {
	TenantID    string
	ID          string
	OrderID     string
	StaffID     string
	StaffRole   StaffRole
	Status      Status
	Inicio      *time.Time
	Fin         *time.Time
	TiempoTotal *float64 // minutes
	UpdatedAt   time.Time
}

// NewOrderMetric seeds the snapshot when an order is first observed.
func NewOrderMetric(tenantID, id, orderID string, now time.Time) *AnalyticsMetric {
	return &AnalyticsMetric{
		TenantID:  tenantID,
		ID:        id,
		OrderID:   orderID,
		Status:    StatusRecibido,
		Inicio:    &now,
		UpdatedAt: now,
	}
}

// NewStaffMetric records a staff-activity snapshot (no order attached).
func NewStaffMetric(tenantID, id, staffID string, role StaffRole, now time.Time) *AnalyticsMetric {
	return &AnalyticsMetric{
		TenantID:  tenantID,
		ID:        id,
		StaffID:   staffID,
		StaffRole: role,
		Status:    "activo",
		Inicio:    &now,
		UpdatedAt: now,
	}
}

// StaffMember is the slice of the staff directory the workflow needs: rider
// lookup for assignment. Staff CRUD itself lives upstream.
type StaffMember struct {
	TenantID string
	ID       string
	Name     string
	Role     StaffRole
	Status   string // "activo" when available for work
}
