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

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `tenant_id, id_order, id_customer, list_id_products, items,
       status, staff_confirmed_delivered, customer_confirmed_delivered, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	query := `
		INSERT INTO orders (tenant_id, id_order, id_customer, list_id_products, items,
		                    status, staff_confirmed_delivered, customer_confirmed_delivered,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Exec(ctx, query,
		order.TenantID, order.ID, order.CustomerID, order.ProductIDs, items,
		order.Status, order.StaffConfirmedDelivered, order.CustomerConfirmedDelivered,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.NewStoreUnavailableError("orders.create", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND id_order = $2`
	order, err := scanOrder(r.db.QueryRow(ctx, query, tenantID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("order", orderID)
		}
		return nil, domain.NewStoreUnavailableError("orders.get", err)
	}
	return order, nil
}

func (r *orderRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 ORDER BY created_at`
	return r.list(ctx, query, tenantID)
}

func (r *orderRepository) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND id_customer = $2 ORDER BY created_at DESC`
	return r.list(ctx, query, tenantID, customerID)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("orders.list", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.NewStoreUnavailableError("orders.list", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateStatus is the conditional status write: it succeeds only when the
// current status is in from. Zero rows affected on an existing order means the
// condition lost.
func (r *orderRepository) UpdateStatus(ctx context.Context, tenantID, orderID string, status domain.Status, from []domain.Status, now time.Time) error {
	query := `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE tenant_id = $1 AND id_order = $2 AND status = ANY($5)
	`
	tag, err := r.db.Exec(ctx, query, tenantID, orderID, status, now, statusStrings(from))
	if err != nil {
		return domain.NewStoreUnavailableError("orders.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, tenantID, orderID); err != nil {
			return err
		}
		return domain.NewConcurrentModificationError("order", orderID)
	}
	return nil
}

// SetConfirmation latches one flag. The write is idempotent: setting an
// already-true flag is a plain no-op success, and nothing ever resets it.
func (r *orderRepository) SetConfirmation(ctx context.Context, tenantID, orderID string, byStaff bool, now time.Time) error {
	column := "customer_confirmed_delivered"
	if byStaff {
		column = "staff_confirmed_delivered"
	}
	query := fmt.Sprintf(`UPDATE orders SET %s = TRUE, updated_at = $3 WHERE tenant_id = $1 AND id_order = $2`, column)
	tag, err := r.db.Exec(ctx, query, tenantID, orderID, now)
	if err != nil {
		return domain.NewStoreUnavailableError("orders.set_confirmation", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("order", orderID)
	}
	return nil
}

func scanOrder(row Row) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	err := row.Scan(
		&order.TenantID, &order.ID, &order.CustomerID, &order.ProductIDs, &items,
		&order.Status, &order.StaffConfirmedDelivered, &order.CustomerConfirmedDelivered,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items: %w", err)
		}
	}
	return &order, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
