package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type deliveryRepository struct {
	db DB
}

func NewDeliveryRepository(db DB) interfaces.DeliveryRepository {
	return &deliveryRepository{db: db}
}

const deliveryColumns = `tenant_id, id_delivery, id_order, id_staff, direccion, id_customer,
       status, assigned_at, tiempo_salida, tiempo_llegada, last_location, proof_url, receipt_url,
       created_at, updated_at`

// CreateIfAbsent keys the conflict on (tenant_id, id_order): a redelivered
// Order.Prepared event cannot spawn a second task for the same order.
func (r *deliveryRepository) CreateIfAbsent(ctx context.Context, task *domain.DeliveryTask) error {
	query := `
		INSERT INTO delivery_tasks (tenant_id, id_delivery, id_order, direccion, id_customer,
		                            status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, id_order) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		task.TenantID, task.ID, task.OrderID, task.Address, task.CustomerID,
		task.Status, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return domain.NewStoreUnavailableError("delivery.create", err)
	}
	return nil
}

func (r *deliveryRepository) Get(ctx context.Context, tenantID, deliveryID string) (*domain.DeliveryTask, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_tasks WHERE tenant_id = $1 AND id_delivery = $2`
	task, err := scanDelivery(r.db.QueryRow(ctx, query, tenantID, deliveryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("delivery", deliveryID)
		}
		return nil, domain.NewStoreUnavailableError("delivery.get", err)
	}
	return task, nil
}

func (r *deliveryRepository) GetByOrder(ctx context.Context, tenantID, orderID string) (*domain.DeliveryTask, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_tasks WHERE tenant_id = $1 AND id_order = $2`
	task, err := scanDelivery(r.db.QueryRow(ctx, query, tenantID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("delivery for order", orderID)
		}
		return nil, domain.NewStoreUnavailableError("delivery.get_by_order", err)
	}
	return task, nil
}

func (r *deliveryRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.DeliveryTask, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_tasks WHERE tenant_id = $1 ORDER BY created_at`
	return r.list(ctx, query, tenantID)
}

func (r *deliveryRepository) ListByStatus(ctx context.Context, tenantID string, status domain.Status) ([]*domain.DeliveryTask, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_tasks WHERE tenant_id = $1 AND status = $2 ORDER BY created_at`
	return r.list(ctx, query, tenantID, status)
}

func (r *deliveryRepository) list(ctx context.Context, query string, args ...any) ([]*domain.DeliveryTask, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("delivery.list", err)
	}
	defer rows.Close()

	var tasks []*domain.DeliveryTask
	for rows.Next() {
		task, err := scanDelivery(rows)
		if err != nil {
			return nil, domain.NewStoreUnavailableError("delivery.list", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *deliveryRepository) Assign(ctx context.Context, tenantID, deliveryID, staffID string, now time.Time) error {
	query := `
		UPDATE delivery_tasks SET id_staff = $3, status = $4, assigned_at = $5, updated_at = $5
		WHERE tenant_id = $1 AND id_delivery = $2 AND status = $6
	`
	return r.conditional(ctx, deliveryID, "delivery.assign", query,
		tenantID, deliveryID, staffID, domain.StatusAsignado, now, domain.StatusListoParaEntrega)
}

func (r *deliveryRepository) MarkEnRoute(ctx context.Context, tenantID, deliveryID string, now time.Time) error {
	query := `
		UPDATE delivery_tasks SET status = $3, tiempo_salida = $4, updated_at = $4
		WHERE tenant_id = $1 AND id_delivery = $2 AND status = $5
	`
	return r.conditional(ctx, deliveryID, "delivery.mark_en_route", query,
		tenantID, deliveryID, domain.StatusEnCamino, now, domain.StatusAsignado)
}

func (r *deliveryRepository) MarkDelivered(ctx context.Context, tenantID, deliveryID, proofURL string, now time.Time) error {
	query := `
		UPDATE delivery_tasks SET status = $3, tiempo_llegada = $4, proof_url = $5, updated_at = $4
		WHERE tenant_id = $1 AND id_delivery = $2 AND status = $6
	`
	return r.conditional(ctx, deliveryID, "delivery.mark_delivered", query,
		tenantID, deliveryID, domain.StatusEntregado, now, proofURL, domain.StatusEnCamino)
}

func (r *deliveryRepository) UpdateLocation(ctx context.Context, tenantID, deliveryID string, loc domain.Location, now time.Time) error {
	body, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}
	query := `
		UPDATE delivery_tasks SET last_location = $3, updated_at = $4
		WHERE tenant_id = $1 AND id_delivery = $2
	`
	tag, err := r.db.Exec(ctx, query, tenantID, deliveryID, body, now)
	if err != nil {
		return domain.NewStoreUnavailableError("delivery.update_location", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("delivery", deliveryID)
	}
	return nil
}

func (r *deliveryRepository) conditional(ctx context.Context, deliveryID, op, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return domain.NewStoreUnavailableError(op, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, args[0].(string), deliveryID); err != nil {
			return err
		}
		return domain.NewConcurrentModificationError("delivery", deliveryID)
	}
	return nil
}

func scanDelivery(row Row) (*domain.DeliveryTask, error) {
	var d domain.DeliveryTask
	var staffID, proofURL, receiptURL *string
	var location []byte
	err := row.Scan(
		&d.TenantID, &d.ID, &d.OrderID, &staffID, &d.Address, &d.CustomerID,
		&d.Status, &d.AssignedAt, &d.TiempoSalida, &d.TiempoLlegada, &location,
		&proofURL, &receiptURL, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if staffID != nil {
		d.StaffID = *staffID
	}
	if proofURL != nil {
		d.ProofURL = *proofURL
	}
	if receiptURL != nil {
		d.ReceiptURL = *receiptURL
	}
	if len(location) > 0 {
		var loc domain.Location
		if err := json.Unmarshal(location, &loc); err != nil {
			return nil, fmt.Errorf("failed to decode location: %w", err)
		}
		d.LastLocation = &loc
	}
	return &d, nil
}
