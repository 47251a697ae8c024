package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type ticketRepository struct {
	db DB
}

func NewTicketRepository(db DB) interfaces.TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `tenant_id, order_id, status, list_id_staff, accepted_by, accepted_at,
       packed_by, packed_at, start_time, end_time, id_customer, created_at, updated_at`

// CreateIfAbsent relies on the composite primary key: a redelivered
// Order.Created event hits the conflict clause and changes nothing.
func (r *ticketRepository) CreateIfAbsent(ctx context.Context, ticket *domain.KitchenTicket) error {
	query := `
		INSERT INTO kitchen_tickets (tenant_id, order_id, status, list_id_staff, id_customer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, order_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		ticket.TenantID, ticket.OrderID, ticket.Status, ticket.StaffIDs, ticket.CustomerID,
		ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		return domain.NewStoreUnavailableError("kitchen.create", err)
	}
	return nil
}

func (r *ticketRepository) Get(ctx context.Context, tenantID, orderID string) (*domain.KitchenTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM kitchen_tickets WHERE tenant_id = $1 AND order_id = $2`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, tenantID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("kitchen ticket", orderID)
		}
		return nil, domain.NewStoreUnavailableError("kitchen.get", err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.KitchenTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM kitchen_tickets WHERE tenant_id = $1 ORDER BY created_at`
	return r.list(ctx, query, tenantID)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, tenantID string, status domain.Status) ([]*domain.KitchenTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM kitchen_tickets WHERE tenant_id = $1 AND status = $2 ORDER BY created_at`
	return r.list(ctx, query, tenantID, status)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]*domain.KitchenTicket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("kitchen.list", err)
	}
	defer rows.Close()

	var tickets []*domain.KitchenTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, domain.NewStoreUnavailableError("kitchen.list", err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

// Accept conditions on recibido so two cooks racing for the same ticket cannot
// both win; the staff log append is guarded against duplicates.
func (r *ticketRepository) Accept(ctx context.Context, tenantID, orderID, staffID string, now time.Time) error {
	query := `
		UPDATE kitchen_tickets
		SET status = $4,
		    list_id_staff = CASE WHEN $3 = ANY(list_id_staff) THEN list_id_staff
		                         ELSE array_append(list_id_staff, $3) END,
		    accepted_by = $3, accepted_at = $5, start_time = $5, updated_at = $5
		WHERE tenant_id = $1 AND order_id = $2 AND status = $6
	`
	tag, err := r.db.Exec(ctx, query, tenantID, orderID, staffID,
		domain.StatusEnPreparacion, now, domain.StatusRecibido)
	if err != nil {
		return domain.NewStoreUnavailableError("kitchen.accept", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, tenantID, orderID); err != nil {
			return err
		}
		return domain.NewConcurrentModificationError("kitchen ticket", orderID)
	}
	return nil
}

// Pack conditions on en_preparacion; packed_by survives re-delivery because it
// is only set when still empty.
func (r *ticketRepository) Pack(ctx context.Context, tenantID, orderID, staffID string, now time.Time) error {
	query := `
		UPDATE kitchen_tickets
		SET status = $4,
		    packed_by = COALESCE(NULLIF(packed_by, ''), $3),
		    packed_at = $5, end_time = $5, updated_at = $5
		WHERE tenant_id = $1 AND order_id = $2 AND status = $6
	`
	tag, err := r.db.Exec(ctx, query, tenantID, orderID, staffID,
		domain.StatusListoParaEntrega, now, domain.StatusEnPreparacion)
	if err != nil {
		return domain.NewStoreUnavailableError("kitchen.pack", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, tenantID, orderID); err != nil {
			return err
		}
		return domain.NewConcurrentModificationError("kitchen ticket", orderID)
	}
	return nil
}

func scanTicket(row Row) (*domain.KitchenTicket, error) {
	var t domain.KitchenTicket
	var acceptedBy, packedBy, customerID *string
	err := row.Scan(
		&t.TenantID, &t.OrderID, &t.Status, &t.StaffIDs, &acceptedBy, &t.AcceptedAt,
		&packedBy, &t.PackedAt, &t.StartTime, &t.EndTime, &customerID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if acceptedBy != nil {
		t.AcceptedBy = *acceptedBy
	}
	if packedBy != nil {
		t.PackedBy = *packedBy
	}
	if customerID != nil {
		t.CustomerID = *customerID
	}
	return &t, nil
}
