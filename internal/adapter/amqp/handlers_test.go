package amqp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqpAdapter "orderflow/internal/adapter/amqp"
	"orderflow/internal/adapter/artifact"
	"orderflow/internal/adapter/logger"
	"orderflow/internal/adapter/memory"
	"orderflow/internal/app/analytics"
	"orderflow/internal/app/kitchen"
	"orderflow/internal/app/orders"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

func envelope(source, detailType, tenantID string, detail any) interfaces.Envelope {
	raw, _ := json.Marshal(detail)
	return interfaces.Envelope{Source: source, DetailType: detailType, TenantID: tenantID, Detail: raw}
}

func TestKitchenHandlerCreatesTicket(t *testing.T) {
	store := memory.NewStore()
	svc := kitchen.NewService(store.Tickets(), store.Orders(), memory.NewBus(),
		artifact.NewStore("kitchen-receipts", logger.Nop()), logger.Nop())
	handler := amqpAdapter.NewKitchenHandler(svc)
	ctx := context.Background()

	env := envelope(interfaces.SourceOrders, interfaces.EventOrderCreated, "t1",
		interfaces.OrderCreatedEvent{TenantID: "t1", OrderID: "o1"})

	require.NoError(t, handler.Handle(ctx, env))
	// Duplicate delivery changes nothing.
	require.NoError(t, handler.Handle(ctx, env))

	ticket, err := store.Tickets().Get(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecibido, ticket.Status)
}

func TestKitchenHandlerMalformed(t *testing.T) {
	svc := kitchen.NewService(memory.NewStore().Tickets(), memory.NewStore().Orders(), memory.NewBus(),
		artifact.NewStore("kitchen-receipts", logger.Nop()), logger.Nop())
	handler := amqpAdapter.NewKitchenHandler(svc)
	ctx := context.Background()

	err := handler.Handle(ctx, envelope(interfaces.SourceOrders, interfaces.EventOrderCreated, "t1",
		interfaces.OrderCreatedEvent{TenantID: "t1"}))
	require.ErrorIs(t, err, domain.ErrMalformedEvent)

	err = handler.Handle(ctx, interfaces.Envelope{
		Source: interfaces.SourceOrders, DetailType: interfaces.EventOrderCreated,
		TenantID: "t1", Detail: json.RawMessage(`{not json`),
	})
	require.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestOrdersHandlerMirrorsStatus(t *testing.T) {
	store := memory.NewStore()
	svc := orders.NewService(store.Orders(), store.Deliveries(), memory.NewBus(), logger.Nop())
	handler := amqpAdapter.NewOrdersHandler(svc, logger.Nop())
	ctx := context.Background()

	order, err := domain.NewOrder("t1", "o1", "cust-1", []string{"p1"}, nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Orders().Create(ctx, order))

	env := envelope(interfaces.SourceKitchen, interfaces.EventOrderUpdated, "t1",
		interfaces.OrderUpdatedEvent{TenantID: "t1", OrderID: "o1", Status: string(domain.StatusEnPreparacion)})
	require.NoError(t, handler.Handle(ctx, env))

	stored, err := store.Orders().Get(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnPreparacion, stored.Status)

	// The ledger's own announcements are skipped, not re-applied.
	own := envelope(interfaces.SourceOrders, interfaces.EventOrderUpdated, "t1",
		interfaces.OrderUpdatedEvent{TenantID: "t1", OrderID: "o1", Status: string(domain.StatusEntregado)})
	require.NoError(t, handler.Handle(ctx, own))
	stored, err = store.Orders().Get(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnPreparacion, stored.Status)
}

func TestOrdersHandlerDeliveredEvent(t *testing.T) {
	store := memory.NewStore()
	svc := orders.NewService(store.Orders(), store.Deliveries(), memory.NewBus(), logger.Nop())
	handler := amqpAdapter.NewOrdersHandler(svc, logger.Nop())
	ctx := context.Background()

	order, err := domain.NewOrder("t1", "o1", "cust-1", []string{"p1"}, nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Orders().Create(ctx, order))

	env := envelope(interfaces.SourceDelivery, interfaces.EventOrderDelivered, "t1",
		interfaces.OrderDeliveredEvent{TenantID: "t1", OrderID: "o1", DeliveryID: "d1"})
	require.NoError(t, handler.Handle(ctx, env))

	stored, err := store.Orders().Get(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEntregado, stored.Status)
}

// A mirror for an order the ledger never saw dead-letters instead of requeueing
// forever.
func TestOrdersHandlerOrphanDeadLetters(t *testing.T) {
	store := memory.NewStore()
	svc := orders.NewService(store.Orders(), store.Deliveries(), memory.NewBus(), logger.Nop())
	handler := amqpAdapter.NewOrdersHandler(svc, logger.Nop())

	env := envelope(interfaces.SourceKitchen, interfaces.EventOrderUpdated, "t1",
		interfaces.OrderUpdatedEvent{TenantID: "t1", OrderID: "ghost", Status: string(domain.StatusEnPreparacion)})
	err := handler.Handle(context.Background(), env)
	require.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestAnalyticsHandlerRoutesEvents(t *testing.T) {
	store := memory.NewStore()
	svc := analytics.NewService(store.Metrics(), store.Orders(), store.Tickets(), store.Deliveries(), logger.Nop())
	handler := amqpAdapter.NewAnalyticsHandler(svc)
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, envelope(interfaces.SourceOrders, interfaces.EventOrderCreated, "t1",
		interfaces.OrderCreatedEvent{TenantID: "t1", OrderID: "o1"})))

	require.NoError(t, handler.Handle(ctx, envelope(interfaces.SourceKitchen, interfaces.EventKitchenMetricsUpdated, "t1",
		[]interfaces.KitchenMetricEntry{{OrderID: "o1", TenantID: "t1", TiempoTotal: 15}})))

	metric, err := store.Metrics().GetByOrder(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusListoParaEntrega, metric.Status)

	require.NoError(t, handler.Handle(ctx, envelope(interfaces.SourceAnalytics, interfaces.EventStaffUpdated, "t1",
		interfaces.StaffUpdatedEvent{StaffID: "s1", Role: string(domain.RoleCocina)})))

	metrics, err := store.Metrics().ListByTenant(ctx, "t1")
	require.NoError(t, err)
	var staffRows int
	for _, m := range metrics {
		if m.OrderID == "" && m.StaffID == "s1" {
			staffRows++
			assert.Equal(t, domain.RoleCocina, m.StaffRole)
		}
	}
	assert.Equal(t, 1, staffRows)

	err = handler.Handle(ctx, envelope(interfaces.SourceAnalytics, interfaces.EventStaffUpdated, "t1",
		interfaces.StaffUpdatedEvent{Role: string(domain.RoleCocina)}))
	require.ErrorIs(t, err, domain.ErrMalformedEvent)

	err = handler.Handle(ctx, envelope(interfaces.SourceOrders, interfaces.EventOrderCreated, "",
		interfaces.OrderCreatedEvent{OrderID: "o1"}))
	require.ErrorIs(t, err, domain.ErrMalformedEvent)
}
