// Package delivery owns the rider-side task queue: assignment, handoff, GPS
// tracking and proof-of-delivery. Tasks are seeded from Order.Prepared events.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type Service struct {
	deliveries interfaces.DeliveryRepository
	staff      interfaces.StaffRepository
	orders     interfaces.OrderRepository
	publisher  interfaces.EventPublisher
	artifacts  interfaces.ArtifactStore
	logger     logger.Logger
}

func NewService(
	deliveries interfaces.DeliveryRepository,
	staff interfaces.StaffRepository,
	orders interfaces.OrderRepository,
	publisher interfaces.EventPublisher,
	artifacts interfaces.ArtifactStore,
	lgr logger.Logger,
) *Service {
	return &Service{
		deliveries: deliveries,
		staff:      staff,
		orders:     orders,
		publisher:  publisher,
		artifacts:  artifacts,
		logger:     lgr,
	}
}

// ReceivePreparedOrder materializes the delivery task for a packed order.
// Creation is keyed on the order id, so a re-delivered Order.Prepared never
// spawns a second task; the existing one is returned instead.
func (s *Service) ReceivePreparedOrder(ctx context.Context, tenantID, orderID, address, customerID string) (*domain.DeliveryTask, error) {
	task := domain.NewDeliveryTask(tenantID, uuid.NewString(), orderID, address, customerID, time.Now().UTC())
	if err := s.deliveries.CreateIfAbsent(ctx, task); err != nil {
		return nil, err
	}

	// A concurrent or earlier creation may have won; the stored row is canonical.
	stored, err := s.deliveries.GetByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery_created", "Delivery task ready for assignment", "", map[string]interface{}{
		"tenant_id":   tenantID,
		"order_id":    orderID,
		"id_delivery": stored.ID,
	})
	return stored, nil
}

// AssignDelivery picks the first available rider and moves the task to
// asignado. Rider choice is deliberately naive: the directory returns riders in
// a stable order and load balancing lives upstream.
func (s *Service) AssignDelivery(ctx context.Context, cmd interfaces.AssignDeliveryCommand) (*domain.DeliveryTask, error) {
	if err := domain.AuthorizeTransition(cmd.Actor, domain.StatusAsignado); err != nil {
		return nil, err
	}

	riders, err := s.staff.ListAvailableRiders(ctx, cmd.TenantID)
	if err != nil {
		return nil, err
	}
	if len(riders) == 0 {
		return nil, domain.NewNotFoundError("rider", "available")
	}
	rider := riders[0]

	if err := s.deliveries.Assign(ctx, cmd.TenantID, cmd.DeliveryID, rider.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	task, err := s.deliveries.Get(ctx, cmd.TenantID, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, cmd.TenantID, task.OrderID, domain.StatusAsignado)
	s.publish(ctx, interfaces.EventOrderAssigned, cmd.TenantID, interfaces.OrderAssignedEvent{
		TenantID:   cmd.TenantID,
		DeliveryID: task.ID,
		OrderID:    task.OrderID,
		StaffID:    rider.ID,
	})

	s.logger.Info("delivery_assigned", "Rider assigned", "", map[string]interface{}{
		"id_delivery": task.ID,
		"id_staff":    rider.ID,
	})
	return task, nil
}

// HandoffOrder marks the rider's departure: asignado to en_camino, with
// tiempo_salida stamped by the store.
func (s *Service) HandoffOrder(ctx context.Context, tenantID, deliveryID string, actor domain.Actor) error {
	if err := domain.AuthorizeTransition(actor, domain.StatusEnCamino); err != nil {
		return err
	}

	if err := s.deliveries.MarkEnRoute(ctx, tenantID, deliveryID, time.Now().UTC()); err != nil {
		return err
	}

	task, err := s.deliveries.Get(ctx, tenantID, deliveryID)
	if err != nil {
		return err
	}

	s.mirror(ctx, tenantID, task.OrderID, domain.StatusEnCamino)
	s.publish(ctx, interfaces.EventOrderEnRoute, tenantID, interfaces.OrderEnRouteEvent{
		TenantID:   tenantID,
		OrderID:    task.OrderID,
		DeliveryID: deliveryID,
	})
	return nil
}

// ConfirmDelivered closes the task: en_camino to entregado, optional proof
// photo stored best-effort, then Order.Delivered on the bus so the ledger and
// analytics converge even if the direct mirror fails.
func (s *Service) ConfirmDelivered(ctx context.Context, cmd interfaces.ConfirmDeliveredCommand) (*domain.DeliveryTask, error) {
	if err := domain.AuthorizeTransition(cmd.Actor, domain.StatusEntregado); err != nil {
		return nil, err
	}

	proofURL := ""
	if len(cmd.ProofData) > 0 {
		key := fmt.Sprintf("%s/%s/proof_%s.jpg", cmd.TenantID, cmd.DeliveryID, uuid.NewString())
		url, err := s.artifacts.Put(ctx, key, "image/jpeg", cmd.ProofData)
		if err != nil {
			s.logger.Error("proof_upload_failed", "Proof photo upload failed", "", map[string]interface{}{
				"id_delivery": cmd.DeliveryID,
			}, err)
		} else {
			proofURL = url
		}
	}

	if err := s.deliveries.MarkDelivered(ctx, cmd.TenantID, cmd.DeliveryID, proofURL, time.Now().UTC()); err != nil {
		return nil, err
	}

	task, err := s.deliveries.Get(ctx, cmd.TenantID, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, cmd.TenantID, task.OrderID, domain.StatusEntregado)
	s.publish(ctx, interfaces.EventOrderDelivered, cmd.TenantID, interfaces.OrderDeliveredEvent{
		TenantID:   cmd.TenantID,
		OrderID:    task.OrderID,
		DeliveryID: task.ID,
		ProofURL:   proofURL,
	})

	s.logger.Info("delivery_completed", "Delivery confirmed by rider", "", map[string]interface{}{
		"id_delivery": task.ID,
		"order_id":    task.OrderID,
	})
	return task, nil
}

// UpdateRiderLocation records a GPS ping. Only the assigned rider may post, and
// only while the task is en route.
func (s *Service) UpdateRiderLocation(ctx context.Context, cmd interfaces.RiderLocationCommand) (*domain.DeliveryTask, error) {
	task, err := s.deliveries.GetByOrder(ctx, cmd.TenantID, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if cmd.Actor.Type != domain.UserTypeStaff {
		return nil, domain.NewForbiddenError("only the assigned rider may report location")
	}
	if cmd.Actor.Role != domain.RoleAdmin && !task.TrackableBy(cmd.Actor.ID) {
		return nil, domain.NewForbiddenError("only the assigned rider may report location")
	}
	if task.Status != domain.StatusEnCamino {
		return nil, domain.NewInvalidTransitionError(task.Status, domain.StatusEnCamino)
	}

	now := time.Now().UTC()
	loc := domain.Location{Lat: cmd.Lat, Lon: cmd.Lon, Timestamp: now}
	if err := s.deliveries.UpdateLocation(ctx, cmd.TenantID, task.ID, loc, now); err != nil {
		return nil, err
	}
	task.LastLocation = &loc
	task.UpdatedAt = now
	return task, nil
}

func (s *Service) GetDeliveryStatus(ctx context.Context, tenantID, deliveryID string) (*domain.DeliveryTask, error) {
	return s.deliveries.Get(ctx, tenantID, deliveryID)
}

func (s *Service) ListDeliveries(ctx context.Context, tenantID string) ([]*domain.DeliveryTask, error) {
	return s.deliveries.ListByTenant(ctx, tenantID)
}

// SyncMetrics publishes one Delivery.MetricsUpdated batch with the route
// duration of every completed task. Tasks missing either timestamp are skipped.
func (s *Service) SyncMetrics(ctx context.Context, tenantID string) (int, error) {
	done, err := s.deliveries.ListByStatus(ctx, tenantID, domain.StatusEntregado)
	if err != nil {
		return 0, err
	}

	var entries []interfaces.DeliveryMetricEntry
	for _, d := range done {
		minutes, ok := d.RouteDuration()
		if !ok {
			continue
		}
		entries = append(entries, interfaces.DeliveryMetricEntry{
			OrderID:       d.OrderID,
			TenantID:      d.TenantID,
			StaffID:       d.StaffID,
			TiempoEntrega: minutes,
		})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.publisher.Publish(ctx, interfaces.SourceDelivery, interfaces.EventDeliveryMetricsUpdated, tenantID, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

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
	if err := s.publisher.Publish(ctx, interfaces.SourceDelivery, detailType, tenantID, detail); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish "+detailType, "", map[string]interface{}{
			"tenant_id": tenantID,
		}, err)
	}
}
