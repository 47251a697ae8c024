// Package analytics maintains the metrics snapshot store and answers KPI and
// dashboard queries. Snapshots are refreshed in place from bus events; the KPI
// projection reads the three trackers directly for timestamp joins.
package analytics

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
	metrics    interfaces.MetricRepository
	orders     interfaces.OrderRepository
	tickets    interfaces.TicketRepository
	deliveries interfaces.DeliveryRepository
	logger     logger.Logger
}

func NewService(
	metrics interfaces.MetricRepository,
	orders interfaces.OrderRepository,
	tickets interfaces.TicketRepository,
	deliveries interfaces.DeliveryRepository,
	lgr logger.Logger,
) *Service {
	return &Service{
		metrics:    metrics,
		orders:     orders,
		tickets:    tickets,
		deliveries: deliveries,
		logger:     lgr,
	}
}

// RecordOrderCreated seeds the snapshot for a new order. The metric id is
// derived from the order id so re-delivery converges on one row.
func (s *Service) RecordOrderCreated(ctx context.Context, tenantID, orderID string) error {
	if _, err := s.metrics.GetByOrder(ctx, tenantID, orderID); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	metric := domain.NewOrderMetric(tenantID, "metric-"+orderID, orderID, time.Now().UTC())
	return s.metrics.Put(ctx, metric)
}

// RecordOrderAssigned attaches the rider to the snapshot. Arrival before
// Order.Created is tolerated by seeding the row on the spot.
func (s *Service) RecordOrderAssigned(ctx context.Context, tenantID, orderID, staffID string) error {
	metric, err := s.metrics.GetByOrder(ctx, tenantID, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		metric = domain.NewOrderMetric(tenantID, "metric-"+orderID, orderID, time.Now().UTC())
	} else if err != nil {
		return err
	}

	metric.StaffID = staffID
	metric.StaffRole = domain.RoleRepartidor
	metric.Status = domain.StatusAsignado
	metric.UpdatedAt = time.Now().UTC()
	return s.metrics.Put(ctx, metric)
}

// RecordOrderCancelled closes the snapshot.
func (s *Service) RecordOrderCancelled(ctx context.Context, tenantID, orderID string) error {
	metric, err := s.metrics.GetByOrder(ctx, tenantID, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	metric.Status = domain.StatusCancelado
	metric.Fin = &now
	metric.UpdatedAt = now
	return s.metrics.Put(ctx, metric)
}

// RecordKitchenMetrics folds a prep-duration batch into the snapshots.
// Entries for unknown orders seed a row rather than being dropped.
func (s *Service) RecordKitchenMetrics(ctx context.Context, tenantID string, entries []interfaces.KitchenMetricEntry) error {
	now := time.Now().UTC()
	for _, e := range entries {
		if e.OrderID == "" {
			return domain.NewMalformedEventError(interfaces.EventKitchenMetricsUpdated, "order_id")
		}
		metric, err := s.metrics.GetByOrder(ctx, tenantID, e.OrderID)
		if errors.Is(err, domain.ErrNotFound) {
			metric = domain.NewOrderMetric(tenantID, "metric-"+e.OrderID, e.OrderID, now)
		} else if err != nil {
			return err
		}

		total := e.TiempoTotal
		metric.Status = domain.StatusListoParaEntrega
		metric.TiempoTotal = &total
		metric.UpdatedAt = now
		if err := s.metrics.Put(ctx, metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordDeliveryMetrics folds a route-duration batch into the snapshots.
func (s *Service) RecordDeliveryMetrics(ctx context.Context, tenantID string, entries []interfaces.DeliveryMetricEntry) error {
	now := time.Now().UTC()
	for _, e := range entries {
		if e.OrderID == "" {
			return domain.NewMalformedEventError(interfaces.EventDeliveryMetricsUpdated, "order_id")
		}
		metric, err := s.metrics.GetByOrder(ctx, tenantID, e.OrderID)
		if errors.Is(err, domain.ErrNotFound) {
			metric = domain.NewOrderMetric(tenantID, "metric-"+e.OrderID, e.OrderID, now)
		} else if err != nil {
			return err
		}

		total := e.TiempoEntrega
		metric.Status = domain.StatusEntregado
		metric.StaffID = e.StaffID
		metric.StaffRole = domain.RoleRepartidor
		metric.TiempoTotal = &total
		metric.Fin = &now
		metric.UpdatedAt = now
		if err := s.metrics.Put(ctx, metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordStaffUpdate appends a staff-activity snapshot.
func (s *Service) RecordStaffUpdate(ctx context.Context, tenantID, staffID string, role domain.StaffRole) error {
	metric := domain.NewStaffMetric(tenantID, uuid.NewString(), staffID, role, time.Now().UTC())
	return s.metrics.Put(ctx, metric)
}

// GetWorkflowKPIs projects stage timings and responsible-party tallies from the
// three trackers. The projection is read-only and recomputed per request.
func (s *Service) GetWorkflowKPIs(ctx context.Context, tenantID string) (*interfaces.WorkflowKPIs, error) {
	orders, err := s.orders.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	deliveries, err := s.deliveries.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return projectKPIs(tenantID, orders, tickets, deliveries), nil
}

// GetDashboard summarizes the snapshot store: total orders seen, active staff,
// completed deliveries.
func (s *Service) GetDashboard(ctx context.Context, tenantID string) (*interfaces.DashboardSummary, error) {
	metrics, err := s.metrics.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &interfaces.DashboardSummary{
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
	}
	staffSeen := map[string]struct{}{}
	for _, m := range metrics {
		if m.OrderID != "" {
			summary.PedidosTotal++
			if m.Status == domain.StatusEntregado {
				summary.EntregasCompletadas++
			}
		}
		if m.StaffID != "" {
			staffSeen[m.StaffID] = struct{}{}
		}
	}
	summary.EmpleadosActivos = len(staffSeen)
	return summary, nil
}
