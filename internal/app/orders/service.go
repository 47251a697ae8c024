// Package orders owns the order ledger: the canonical status field and the two
// delivery-confirmation flags. Other services mirror into it best-effort; the
// ledger's own event consumer closes the loop when a direct mirror failed.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type Service struct {
	repo       interfaces.OrderRepository
	deliveries interfaces.DeliveryRepository
	publisher  interfaces.EventPublisher
	logger     logger.Logger
}

func NewService(
	repo interfaces.OrderRepository,
	deliveries interfaces.DeliveryRepository,
	publisher interfaces.EventPublisher,
	lgr logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		deliveries: deliveries,
		publisher:  publisher,
		logger:     lgr,
	}
}

// CreateOrder registers a new order in recibido and announces it on the bus.
// The ledger write is the primary mutation; the event publish is best-effort.
func (s *Service) CreateOrder(ctx context.Context, cmd interfaces.CreateOrderCommand) (*domain.Order, error) {
	if cmd.Actor.Type == domain.UserTypeCustomer && cmd.Actor.ID != cmd.CustomerID {
		return nil, domain.NewForbiddenError("customers may only create orders for their own account")
	}

	now := time.Now().UTC()
	order, err := domain.NewOrder(cmd.TenantID, uuid.NewString(), cmd.CustomerID, cmd.ProductIDs, cmd.Items, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("order_create_failed", "Failed to persist order", "", map[string]interface{}{
			"tenant_id": cmd.TenantID,
		}, err)
		return nil, err
	}

	s.publish(ctx, interfaces.EventOrderCreated, order.TenantID, interfaces.OrderCreatedEvent{
		TenantID: order.TenantID,
		OrderID:  order.ID,
	})

	s.logger.Info("order_created", "Order created", "", map[string]interface{}{
		"tenant_id": order.TenantID,
		"id_order":  order.ID,
	})
	return order, nil
}

// UpdateOrderStatus drives one forward edge of the state machine on behalf of
// a staff actor. Edge legality is checked before role authority so the two
// failure modes stay distinguishable.
func (s *Service) UpdateOrderStatus(ctx context.Context, cmd interfaces.UpdateOrderStatusCommand) error {
	if cmd.Status == domain.StatusCancelado {
		return domain.NewInvalidTransitionError("", cmd.Status)
	}

	order, err := s.repo.Get(ctx, cmd.TenantID, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := domain.ValidateTransition(order.Status, cmd.Status); err != nil {
		return err
	}
	if err := domain.AuthorizeTransition(cmd.Actor, cmd.Status); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, cmd.TenantID, cmd.OrderID, cmd.Status, []domain.Status{order.Status}, now); err != nil {
		return err
	}

	s.publish(ctx, interfaces.EventOrderUpdated, cmd.TenantID, interfaces.OrderUpdatedEvent{
		TenantID: cmd.TenantID,
		OrderID:  cmd.OrderID,
		Status:   string(cmd.Status),
	})
	return nil
}

// CancelOrder moves the order to the terminal cancelled state. Only possible
// before the kitchen starts; customers may only cancel their own orders.
func (s *Service) CancelOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) error {
	order, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	if actor.Type == domain.UserTypeCustomer && !order.OwnedBy(actor.ID) {
		return domain.NewForbiddenError("customers may only cancel their own orders")
	}
	if !order.Cancellable() {
		return domain.NewInvalidTransitionError(order.Status, domain.StatusCancelado)
	}
	if err := domain.AuthorizeTransition(actor, domain.StatusCancelado); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, tenantID, orderID, domain.StatusCancelado, domain.Predecessors(domain.StatusCancelado), now); err != nil {
		return err
	}

	s.publish(ctx, interfaces.EventOrderCancelled, tenantID, interfaces.OrderCancelledEvent{
		TenantID: tenantID,
		OrderID:  orderID,
	})

	s.logger.Info("order_cancelled", "Order cancelled", "", map[string]interface{}{
		"tenant_id": tenantID,
		"id_order":  orderID,
	})
	return nil
}

// ConfirmDelivered latches the confirmation flag belonging to the actor. The
// two flags are independent and monotone: once set they stay set, and closure
// requires both.
func (s *Service) ConfirmDelivered(ctx context.Context, tenantID, orderID string, actor domain.Actor) error {
	order, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	byStaff := actor.Type == domain.UserTypeStaff
	if !byStaff {
		if actor.Type != domain.UserTypeCustomer {
			return domain.NewForbiddenError("unknown actor type")
		}
		if !order.OwnedBy(actor.ID) {
			return domain.NewForbiddenError("customers may only confirm their own orders")
		}
	}

	return s.repo.SetConfirmation(ctx, tenantID, orderID, byStaff, time.Now().UTC())
}

// CheckConfirmations answers the external orchestrator's poll: done only when
// both parties have confirmed, in either order.
func (s *Service) CheckConfirmations(ctx context.Context, tenantID, orderID string) (domain.Confirmations, error) {
	order, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return domain.Confirmations{}, err
	}
	return domain.ConfirmationsOf(order), nil
}

func (s *Service) GetOrder(ctx context.Context, tenantID, orderID string, actor domain.Actor) (*domain.Order, error) {
	order, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Type == domain.UserTypeCustomer && !order.OwnedBy(actor.ID) {
		return nil, domain.NewForbiddenError("not your order")
	}
	return order, nil
}

// GetOrderStatus is the customer-facing tracking view: ledger status plus the
// delivery sub-state once the order has left the kitchen.
func (s *Service) GetOrderStatus(ctx context.Context, tenantID, orderID string, actor domain.Actor) (*interfaces.OrderStatusResponse, error) {
	order, err := s.GetOrder(ctx, tenantID, orderID, actor)
	if err != nil {
		return nil, err
	}

	resp := &interfaces.OrderStatusResponse{
		OrderID:   order.ID,
		Status:    order.Status,
		UpdatedAt: order.UpdatedAt,
	}

	if order.Status.Rank() >= domain.StatusListoParaEntrega.Rank() {
		task, err := s.deliveries.GetByOrder(ctx, tenantID, orderID)
		if err == nil {
			resp.Delivery = &interfaces.DeliveryInfo{
				DeliveryID:    task.ID,
				Status:        task.Status,
				Address:       task.Address,
				StaffID:       task.StaffID,
				TiempoSalida:  task.TiempoSalida,
				TiempoLlegada: task.TiempoLlegada,
				Location:      task.LastLocation,
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			// The tracking view degrades to ledger-only rather than failing.
			s.logger.Error("delivery_lookup_failed", "Could not enrich order status", "", map[string]interface{}{
				"id_order": orderID,
			}, err)
		}
	}
	return resp, nil
}

func (s *Service) ListCustomerOrders(ctx context.Context, tenantID string, actor domain.Actor) ([]*domain.Order, error) {
	if actor.Type != domain.UserTypeCustomer {
		return nil, domain.NewForbiddenError("only customers have an order history")
	}
	return s.repo.ListByCustomer(ctx, tenantID, actor.ID)
}

// MirrorStatus applies a status observed on the bus to the ledger. The write
// only ever moves the status forward in rank, so duplicates and stragglers are
// absorbed silently.
func (s *Service) MirrorStatus(ctx context.Context, tenantID, orderID string, status domain.Status) error {
	from := domain.MirrorPredecessors(status)
	if len(from) == 0 {
		return domain.NewMalformedEventError(interfaces.EventOrderUpdated, "status")
	}

	err := s.repo.UpdateStatus(ctx, tenantID, orderID, status, from, time.Now().UTC())
	if errors.Is(err, domain.ErrConcurrentModification) {
		// Already at or past this status: the mirror is a no-op.
		s.logger.Debug("mirror_skipped", "Ledger already ahead of mirrored status", "", map[string]interface{}{
			"id_order": orderID,
			"status":   string(status),
		})
		return nil
	}
	return err
}

func (s *Service) publish(ctx context.Context, detailType, tenantID string, detail any) {
	if err := s.publisher.Publish(ctx, interfaces.SourceOrders, detailType, tenantID, detail); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish "+detailType, "", map[string]interface{}{
			"tenant_id": tenantID,
		}, err)
	}
}
