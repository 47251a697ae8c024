package analytics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/adapter/memory"
	"orderflow/internal/app/analytics"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

func newFixture() (*analytics.Service, *memory.Store) {
	store := memory.NewStore()
	svc := analytics.NewService(store.Metrics(), store.Orders(), store.Tickets(), store.Deliveries(), logger.Nop())
	return svc, store
}

func TestRecordOrderCreatedIdempotent(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()

	require.NoError(t, svc.RecordOrderCreated(ctx, "t1", "o1"))
	require.NoError(t, svc.RecordOrderCreated(ctx, "t1", "o1"))

	metrics, err := store.Metrics().ListByTenant(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, domain.StatusRecibido, metrics[0].Status)
}

func TestRecordOrderAssignedBeforeCreated(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()

	// Out-of-order arrival seeds the snapshot on the spot.
	require.NoError(t, svc.RecordOrderAssigned(ctx, "t1", "o1", "rider-1"))

	metric, err := store.Metrics().GetByOrder(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAsignado, metric.Status)
	assert.Equal(t, "rider-1", metric.StaffID)
}

func TestRecordOrderCancelled(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()

	require.NoError(t, svc.RecordOrderCreated(ctx, "t1", "o1"))
	require.NoError(t, svc.RecordOrderCancelled(ctx, "t1", "o1"))

	metric, err := store.Metrics().GetByOrder(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelado, metric.Status)
	require.NotNil(t, metric.Fin)

	// Cancelling an order the store never saw is a no-op.
	require.NoError(t, svc.RecordOrderCancelled(ctx, "t1", "ghost"))
}

func TestRecordMetricBatches(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()

	require.NoError(t, svc.RecordKitchenMetrics(ctx, "t1", []interfaces.KitchenMetricEntry{
		{OrderID: "o1", TenantID: "t1", TiempoTotal: 12.5},
	}))
	metric, err := store.Metrics().GetByOrder(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusListoParaEntrega, metric.Status)
	require.NotNil(t, metric.TiempoTotal)
	assert.InDelta(t, 12.5, *metric.TiempoTotal, 1e-9)

	require.NoError(t, svc.RecordDeliveryMetrics(ctx, "t1", []interfaces.DeliveryMetricEntry{
		{OrderID: "o1", TenantID: "t1", StaffID: "rider-1", TiempoEntrega: 30},
	}))
	metric, err = store.Metrics().GetByOrder(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEntregado, metric.Status)
	assert.Equal(t, "rider-1", metric.StaffID)

	err = svc.RecordKitchenMetrics(ctx, "t1", []interfaces.KitchenMetricEntry{{TenantID: "t1"}})
	require.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestGetDashboard(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	require.NoError(t, svc.RecordOrderCreated(ctx, "t1", "o1"))
	require.NoError(t, svc.RecordOrderCreated(ctx, "t1", "o2"))
	require.NoError(t, svc.RecordDeliveryMetrics(ctx, "t1", []interfaces.DeliveryMetricEntry{
		{OrderID: "o1", TenantID: "t1", StaffID: "rider-1", TiempoEntrega: 20},
	}))
	require.NoError(t, svc.RecordStaffUpdate(ctx, "t1", "cook-1", domain.RoleCocina))

	summary, err := svc.GetDashboard(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PedidosTotal)
	assert.Equal(t, 1, summary.EntregasCompletadas)
	assert.Equal(t, 2, summary.EmpleadosActivos)

	// Tenants never leak into each other's dashboards.
	other, err := svc.GetDashboard(ctx, "t2")
	require.NoError(t, err)
	assert.Zero(t, other.PedidosTotal)
}
