package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type metricRepository struct {
	db DB
}

func NewMetricRepository(db DB) interfaces.MetricRepository {
	return &metricRepository{db: db}
}

const metricColumns = `tenant_id, id_metric, id_order, id_staff, staff_role, status,
       inicio, fin, tiempo_total, updated_at`

// Put refreshes the snapshot for an order: one metric row per order, replaced
// in place as the workflow advances.
func (r *metricRepository) Put(ctx context.Context, metric *domain.AnalyticsMetric) error {
	query := `
		INSERT INTO analytics_metrics (tenant_id, id_metric, id_order, id_staff, staff_role,
		                               status, inicio, fin, tiempo_total, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, id_metric) DO UPDATE SET
		    id_staff = EXCLUDED.id_staff, staff_role = EXCLUDED.staff_role,
		    status = EXCLUDED.status, inicio = EXCLUDED.inicio, fin = EXCLUDED.fin,
		    tiempo_total = EXCLUDED.tiempo_total, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		metric.TenantID, metric.ID, nullable(metric.OrderID), nullable(metric.StaffID),
		nullable(string(metric.StaffRole)), metric.Status, metric.Inicio, metric.Fin,
		metric.TiempoTotal, metric.UpdatedAt)
	if err != nil {
		return domain.NewStoreUnavailableError("analytics.put", err)
	}
	return nil
}

func (r *metricRepository) GetByOrder(ctx context.Context, tenantID, orderID string) (*domain.AnalyticsMetric, error) {
	query := `SELECT ` + metricColumns + ` FROM analytics_metrics WHERE tenant_id = $1 AND id_order = $2`
	metric, err := scanMetric(r.db.QueryRow(ctx, query, tenantID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("metric for order", orderID)
		}
		return nil, domain.NewStoreUnavailableError("analytics.get_by_order", err)
	}
	return metric, nil
}

func (r *metricRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.AnalyticsMetric, error) {
	query := `SELECT ` + metricColumns + ` FROM analytics_metrics WHERE tenant_id = $1`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("analytics.list", err)
	}
	defer rows.Close()

	var metrics []*domain.AnalyticsMetric
	for rows.Next() {
		metric, err := scanMetric(rows)
		if err != nil {
			return nil, domain.NewStoreUnavailableError("analytics.list", err)
		}
		metrics = append(metrics, metric)
	}
	return metrics, nil
}

func scanMetric(row Row) (*domain.AnalyticsMetric, error) {
	var m domain.AnalyticsMetric
	var orderID, staffID, staffRole *string
	err := row.Scan(
		&m.TenantID, &m.ID, &orderID, &staffID, &staffRole, &m.Status,
		&m.Inicio, &m.Fin, &m.TiempoTotal, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderID != nil {
		m.OrderID = *orderID
	}
	if staffID != nil {
		m.StaffID = *staffID
	}
	if staffRole != nil {
		m.StaffRole = domain.StaffRole(*staffRole)
	}
	return &m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type staffRepository struct {
	db DB
}

func NewStaffRepository(db DB) interfaces.StaffRepository {
	return &staffRepository{db: db}
}

// ListAvailableRiders reads the staff directory owned by the upstream staff
// service. Only active riders of the tenant qualify for assignment.
func (r *staffRepository) ListAvailableRiders(ctx context.Context, tenantID string) ([]*domain.StaffMember, error) {
	query := `
		SELECT tenant_id, id_staff, name, role, status FROM staff
		WHERE tenant_id = $1 AND role = $2 AND status = 'activo'
		ORDER BY id_staff
	`
	rows, err := r.db.Query(ctx, query, tenantID, domain.RoleRepartidor)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("staff.list_riders", err)
	}
	defer rows.Close()

	var riders []*domain.StaffMember
	for rows.Next() {
		var s domain.StaffMember
		if err := rows.Scan(&s.TenantID, &s.ID, &s.Name, &s.Role, &s.Status); err != nil {
			return nil, domain.NewStoreUnavailableError("staff.list_riders", err)
		}
		riders = append(riders, &s)
	}
	return riders, nil
}
