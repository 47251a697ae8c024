package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/adapter/memory"
	"orderflow/internal/app/orders"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

var (
	customer = domain.Actor{ID: "cust-1", Type: domain.UserTypeCustomer}
	cook     = domain.Actor{ID: "cook-1", Type: domain.UserTypeStaff, Role: domain.RoleCocina}
	rider    = domain.Actor{ID: "rider-1", Type: domain.UserTypeStaff, Role: domain.RoleRepartidor}
)

func newFixture() (*orders.Service, *memory.Store, *memory.Bus) {
	store := memory.NewStore()
	bus := memory.NewBus()
	svc := orders.NewService(store.Orders(), store.Deliveries(), bus, logger.Nop())
	return svc, store, bus
}

func createOrder(t *testing.T, svc *orders.Service) *domain.Order {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), interfaces.CreateOrderCommand{
		TenantID:   "t1",
		CustomerID: customer.ID,
		ProductIDs: []string{"p1"},
		Actor:      customer,
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderPublishesEvent(t *testing.T) {
	svc, _, bus := newFixture()
	order := createOrder(t, svc)

	assert.Equal(t, domain.StatusRecibido, order.Status)
	events := bus.PublishedOf(interfaces.EventOrderCreated)
	require.Len(t, events, 1)
	assert.Equal(t, interfaces.SourceOrders, events[0].Source)
	assert.Equal(t, "t1", events[0].TenantID)
}

func TestCreateOrderForAnotherCustomerForbidden(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.CreateOrder(context.Background(), interfaces.CreateOrderCommand{
		TenantID:   "t1",
		CustomerID: "someone-else",
		ProductIDs: []string{"p1"},
		Actor:      customer,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

// The ledger write is primary: a bus outage must not fail order creation.
func TestCreateOrderSurvivesBusOutage(t *testing.T) {
	svc, store, bus := newFixture()
	bus.FailNext = true

	order := createOrder(t, svc)

	stored, err := store.Orders().Get(context.Background(), "t1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecibido, stored.Status)
	assert.Empty(t, bus.Published())
}

func TestUpdateOrderStatus(t *testing.T) {
	svc, _, bus := newFixture()
	order := createOrder(t, svc)

	err := svc.UpdateOrderStatus(context.Background(), interfaces.UpdateOrderStatusCommand{
		TenantID: "t1", OrderID: order.ID, Status: domain.StatusEnPreparacion, Actor: cook,
	})
	require.NoError(t, err)

	events := bus.PublishedOf(interfaces.EventOrderUpdated)
	require.Len(t, events, 1)

	// Skipping a state is an illegal edge.
	err = svc.UpdateOrderStatus(context.Background(), interfaces.UpdateOrderStatusCommand{
		TenantID: "t1", OrderID: order.ID, Status: domain.StatusEnCamino, Actor: rider,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Legal edge, wrong role.
	err = svc.UpdateOrderStatus(context.Background(), interfaces.UpdateOrderStatusCommand{
		TenantID: "t1", OrderID: order.ID, Status: domain.StatusListoParaEntrega, Actor: rider,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = svc.UpdateOrderStatus(context.Background(), interfaces.UpdateOrderStatusCommand{
		TenantID: "t1", OrderID: "missing", Status: domain.StatusEnPreparacion, Actor: cook,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelOrder(t *testing.T) {
	svc, store, bus := newFixture()
	order := createOrder(t, svc)

	require.NoError(t, svc.CancelOrder(context.Background(), "t1", order.ID, customer))

	stored, err := store.Orders().Get(context.Background(), "t1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelado, stored.Status)
	assert.Len(t, bus.PublishedOf(interfaces.EventOrderCancelled), 1)
}

func TestCancelAfterKitchenStartedRejected(t *testing.T) {
	svc, _, _ := newFixture()
	order := createOrder(t, svc)

	require.NoError(t, svc.UpdateOrderStatus(context.Background(), interfaces.UpdateOrderStatusCommand{
		TenantID: "t1", OrderID: order.ID, Status: domain.StatusEnPreparacion, Actor: cook,
	}))

	err := svc.CancelOrder(context.Background(), "t1", order.ID, customer)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelForeignOrderForbidden(t *testing.T) {
	svc, _, _ := newFixture()
	order := createOrder(t, svc)

	other := domain.Actor{ID: "cust-2", Type: domain.UserTypeCustomer}
	err := svc.CancelOrder(context.Background(), "t1", order.ID, other)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestConfirmDeliveredLatch(t *testing.T) {
	svc, _, _ := newFixture()
	order := createOrder(t, svc)
	ctx := context.Background()

	c, err := svc.CheckConfirmations(ctx, "t1", order.ID)
	require.NoError(t, err)
	assert.False(t, c.Done)

	require.NoError(t, svc.ConfirmDelivered(ctx, "t1", order.ID, rider))
	c, err = svc.CheckConfirmations(ctx, "t1", order.ID)
	require.NoError(t, err)
	assert.True(t, c.StaffConfirmed)
	assert.False(t, c.Done)

	// Re-confirming the same side is a no-op, not an error.
	require.NoError(t, svc.ConfirmDelivered(ctx, "t1", order.ID, rider))

	require.NoError(t, svc.ConfirmDelivered(ctx, "t1", order.ID, customer))
	c, err = svc.CheckConfirmations(ctx, "t1", order.ID)
	require.NoError(t, err)
	assert.True(t, c.Done)
}

func TestConfirmDeliveredForeignCustomerForbidden(t *testing.T) {
	svc, _, _ := newFixture()
	order := createOrder(t, svc)

	other := domain.Actor{ID: "cust-2", Type: domain.UserTypeCustomer}
	err := svc.ConfirmDelivered(context.Background(), "t1", order.ID, other)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestMirrorStatusForwardOnly(t *testing.T) {
	svc, store, _ := newFixture()
	order := createOrder(t, svc)
	ctx := context.Background()

	// Mirrors may skip intermediate states.
	require.NoError(t, svc.MirrorStatus(ctx, "t1", order.ID, domain.StatusAsignado))
	stored, err := store.Orders().Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAsignado, stored.Status)

	// A stale event never regresses the ledger; it is absorbed silently.
	require.NoError(t, svc.MirrorStatus(ctx, "t1", order.ID, domain.StatusEnPreparacion))
	stored, err = store.Orders().Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAsignado, stored.Status)

	// A duplicate of the current status is also a no-op.
	require.NoError(t, svc.MirrorStatus(ctx, "t1", order.ID, domain.StatusAsignado))
}

func TestGetOrderStatusIncludesDelivery(t *testing.T) {
	svc, store, _ := newFixture()
	order := createOrder(t, svc)
	ctx := context.Background()

	now := time.Now().UTC()
	task := domain.NewDeliveryTask("t1", "d1", order.ID, "Calle 1", order.CustomerID, now)
	require.NoError(t, store.Deliveries().CreateIfAbsent(ctx, task))
	require.NoError(t, svc.MirrorStatus(ctx, "t1", order.ID, domain.StatusListoParaEntrega))

	resp, err := svc.GetOrderStatus(ctx, "t1", order.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusListoParaEntrega, resp.Status)
	require.NotNil(t, resp.Delivery)
	assert.Equal(t, "d1", resp.Delivery.DeliveryID)
	assert.Equal(t, "Calle 1", resp.Delivery.Address)
}

func TestGetOrderStatusBeforeDispatchOmitsDelivery(t *testing.T) {
	svc, _, _ := newFixture()
	order := createOrder(t, svc)

	resp, err := svc.GetOrderStatus(context.Background(), "t1", order.ID, customer)
	require.NoError(t, err)
	assert.Nil(t, resp.Delivery)
}

func TestListCustomerOrders(t *testing.T) {
	svc, _, _ := newFixture()
	createOrder(t, svc)
	createOrder(t, svc)

	list, err := svc.ListCustomerOrders(context.Background(), "t1", customer)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.ListCustomerOrders(context.Background(), "t1", cook)
	require.ErrorIs(t, err, domain.ErrForbidden)
}
