// Package kitchen owns the ticket queue. Tickets are seeded from Order.Created
// events; cooks drive them through accept and pack, which fan out to the order
// ledger and the bus.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type Service struct {
	tickets   interfaces.TicketRepository
	orders    interfaces.OrderRepository
	publisher interfaces.EventPublisher
	artifacts interfaces.ArtifactStore
	logger    logger.Logger
}

func NewService(
	tickets interfaces.TicketRepository,
	orders interfaces.OrderRepository,
	publisher interfaces.EventPublisher,
	artifacts interfaces.ArtifactStore,
	lgr logger.Logger,
) *Service {
	return &Service{
		tickets:   tickets,
		orders:    orders,
		publisher: publisher,
		artifacts: artifacts,
		logger:    lgr,
	}
}

// ReceiveOrder materializes a ticket for a newly created order. Display fields
// are copied from the ledger once; a missing or unreachable ledger row only
// degrades the copy, it never blocks the ticket. Safe under re-delivery.
func (s *Service) ReceiveOrder(ctx context.Context, tenantID, orderID string) error {
	customerID := ""
	if order, err := s.orders.Get(ctx, tenantID, orderID); err == nil {
		customerID = order.CustomerID
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("order_copy_failed", "Could not copy order fields onto ticket", "", map[string]interface{}{
			"id_order": orderID,
		}, err)
	}

	ticket := domain.NewKitchenTicket(tenantID, orderID, customerID, time.Now().UTC())
	if err := s.tickets.CreateIfAbsent(ctx, ticket); err != nil {
		return err
	}

	s.logger.Info("ticket_created", "Kitchen ticket created", "", map[string]interface{}{
		"tenant_id": tenantID,
		"order_id":  orderID,
	})
	return nil
}

// AcceptOrder moves a ticket to en_preparacion on behalf of a cook. The ticket
// write is the primary mutation; the ledger mirror and the bus event are
// best-effort.
func (s *Service) AcceptOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) error {
	if err := domain.AuthorizeTransition(actor, domain.StatusEnPreparacion); err != nil {
		return err
	}

	if err := s.tickets.Accept(ctx, tenantID, orderID, actor.ID, time.Now().UTC()); err != nil {
		return err
	}

	s.mirror(ctx, tenantID, orderID, domain.StatusEnPreparacion)
	s.publish(ctx, interfaces.EventOrderUpdated, tenantID, interfaces.OrderUpdatedEvent{
		TenantID: tenantID,
		OrderID:  orderID,
		Status:   string(domain.StatusEnPreparacion),
	})

	s.logger.Info("ticket_accepted", "Ticket accepted", "", map[string]interface{}{
		"order_id":    orderID,
		"accepted_by": actor.ID,
	})
	return nil
}

// PackOrder moves a ticket to listo_para_entrega. Besides the ledger mirror it
// writes a receipt artifact and announces Order.Prepared, which seeds the
// delivery task downstream. All three follow-ups are best-effort.
func (s *Service) PackOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) error {
	if err := domain.AuthorizeTransition(actor, domain.StatusListoParaEntrega); err != nil {
		return err
	}

	if err := s.tickets.Pack(ctx, tenantID, orderID, actor.ID, time.Now().UTC()); err != nil {
		return err
	}

	prepared := interfaces.OrderPreparedEvent{
		TenantID: tenantID,
		OrderID:  orderID,
		PackedBy: actor.ID,
	}
	if order, err := s.orders.Get(ctx, tenantID, orderID); err == nil {
		prepared.CustomerID = order.CustomerID
	}

	s.writeReceipt(ctx, tenantID, orderID)
	s.mirror(ctx, tenantID, orderID, domain.StatusListoParaEntrega)
	s.publish(ctx, interfaces.EventOrderPrepared, tenantID, prepared)

	s.logger.Info("ticket_packed", "Ticket packed", "", map[string]interface{}{
		"order_id":  orderID,
		"packed_by": actor.ID,
	})
	return nil
}

// GetQueue lists the tenant's tickets, oldest first.
func (s *Service) GetQueue(ctx context.Context, tenantID string) ([]*domain.KitchenTicket, error) {
	return s.tickets.ListByTenant(ctx, tenantID)
}

// SyncMetrics publishes one Kitchen.MetricsUpdated batch with the prep duration
// of every packed ticket. Tickets missing either endpoint are skipped. Returns
// the number of entries published.
func (s *Service) SyncMetrics(ctx context.Context, tenantID string) (int, error) {
	packed, err := s.tickets.ListByStatus(ctx, tenantID, domain.StatusListoParaEntrega)
	if err != nil {
		return 0, err
	}

	var entries []interfaces.KitchenMetricEntry
	for _, t := range packed {
		minutes, ok := t.PrepDuration()
		if !ok {
			continue
		}
		entries = append(entries, interfaces.KitchenMetricEntry{
			OrderID:     t.OrderID,
			TenantID:    t.TenantID,
			TiempoTotal: minutes,
		})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.publisher.Publish(ctx, interfaces.SourceKitchen, interfaces.EventKitchenMetricsUpdated, tenantID, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Service) writeReceipt(ctx context.Context, tenantID, orderID string) {
	ticket, err := s.tickets.Get(ctx, tenantID, orderID)
	if err != nil {
		s.logger.Error("receipt_skipped", "Could not load ticket for receipt", "", map[string]interface{}{
			"order_id": orderID,
		}, err)
		return
	}

	body := fmt.Sprintf(
		"COMANDA\norder: %s\ntenant: %s\ncustomer: %s\naccepted_by: %s\npacked_by: %s\nstatus: %s\n",
		ticket.OrderID, ticket.TenantID, ticket.CustomerID, ticket.AcceptedBy, ticket.PackedBy, ticket.Status,
	)
	key := fmt.Sprintf("%s/%s/receipt.txt", tenantID, orderID)
	url, err := s.artifacts.Put(ctx, key, "text/plain", []byte(body))
	if err != nil {
		s.logger.Error("receipt_failed", "Receipt upload failed", "", map[string]interface{}{
			"order_id": orderID,
		}, err)
		return
	}
	s.logger.Debug("receipt_stored", "Receipt stored", "", map[string]interface{}{
		"order_id": orderID,
		"url":      url,
	})
}

// mirror pushes the new status onto the order ledger. The ledger's own event
// consumer covers the case where this direct write fails.
func (s *Service) mirror(ctx context.Context, tenantID, orderID string, status domain.Status) {
	err := s.orders.UpdateStatus(ctx, tenantID, orderID, status, domain.MirrorPredecessors(status), time.Now().UTC())
	if err != nil && !errors.Is(err, domain.ErrConcurrentModification) {
		s.logger.Error("ledger_mirror_failed", "Order ledger mirror failed", "", map[string]interface{}{
			"order_id": orderID,
			"status":   string(status),
		}, err)
	}
}

func (s *Service) publish(ctx context.Context, detailType, tenantID string, detail any) {
	if err := s.publisher.Publish(ctx, interfaces.SourceKitchen, detailType, tenantID, detail); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish "+detailType, "", map[string]interface{}{
			"tenant_id": tenantID,
		}, err)
	}
}
