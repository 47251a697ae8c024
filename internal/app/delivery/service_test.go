package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/adapter/artifact"
	"orderflow/internal/adapter/logger"
	"orderflow/internal/adapter/memory"
	"orderflow/internal/app/delivery"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

var rider = domain.Actor{ID: "rider-1", Type: domain.UserTypeStaff, Role: domain.RoleRepartidor}

func newFixture() (*delivery.Service, *memory.Store, *memory.Bus) {
	store := memory.NewStore()
	bus := memory.NewBus()
	store.AddStaff(&domain.StaffMember{
		TenantID: "t1", ID: rider.ID, Name: "Rider One", Role: domain.RoleRepartidor, Status: "activo",
	})
	svc := delivery.NewService(store.Deliveries(), store.Staff(), store.Orders(), bus,
		artifact.NewStore("delivery-proofs", logger.Nop()), logger.Nop())
	return svc, store, bus
}

func seedOrder(t *testing.T, store *memory.Store, orderID string, status domain.Status) {
	t.Helper()
	order, err := domain.NewOrder("t1", orderID, "cust-1", []string{"p1"}, nil, time.Now().UTC())
	require.NoError(t, err)
	order.Status = status
	require.NoError(t, store.Orders().Create(context.Background(), order))
}

func receiveTask(t *testing.T, svc *delivery.Service, orderID string) *domain.DeliveryTask {
	t.Helper()
	task, err := svc.ReceivePreparedOrder(context.Background(), "t1", orderID, "Calle 1", "cust-1")
	require.NoError(t, err)
	return task
}

func TestReceivePreparedOrderIdempotent(t *testing.T) {
	svc, _, _ := newFixture()

	first := receiveTask(t, svc, "o1")
	assert.Equal(t, domain.StatusListoParaEntrega, first.Status)

	// The duplicate returns the existing task, never a second one.
	second := receiveTask(t, svc, "o1")
	assert.Equal(t, first.ID, second.ID)
}

func TestAssignDelivery(t *testing.T) {
	svc, store, bus := newFixture()
	seedOrder(t, store, "o1", domain.StatusListoParaEntrega)
	task := receiveTask(t, svc, "o1")
	ctx := context.Background()

	assigned, err := svc.AssignDelivery(ctx, interfaces.AssignDeliveryCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: rider,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAsignado, assigned.Status)
	assert.Equal(t, rider.ID, assigned.StaffID)
	require.NotNil(t, assigned.AssignedAt)

	order, err := store.Orders().Get(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAsignado, order.Status)

	events := bus.PublishedOf(interfaces.EventOrderAssigned)
	require.Len(t, events, 1)
	assert.Equal(t, interfaces.SourceDelivery, events[0].Source)
}

func TestAssignDeliveryNoRiders(t *testing.T) {
	store := memory.NewStore()
	svc := delivery.NewService(store.Deliveries(), store.Staff(), store.Orders(), memory.NewBus(),
		artifact.NewStore("delivery-proofs", logger.Nop()), logger.Nop())

	task, err := svc.ReceivePreparedOrder(context.Background(), "t1", "o1", "", "")
	require.NoError(t, err)

	_, err = svc.AssignDelivery(context.Background(), interfaces.AssignDeliveryCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: rider,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignDeliveryRequiresRiderRole(t *testing.T) {
	svc, _, _ := newFixture()
	task := receiveTask(t, svc, "o1")

	cook := domain.Actor{ID: "cook-1", Type: domain.UserTypeStaff, Role: domain.RoleCocina}
	_, err := svc.AssignDelivery(context.Background(), interfaces.AssignDeliveryCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: cook,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestFullDeliveryFlow(t *testing.T) {
	svc, store, bus := newFixture()
	seedOrder(t, store, "o1", domain.StatusListoParaEntrega)
	task := receiveTask(t, svc, "o1")
	ctx := context.Background()

	_, err := svc.AssignDelivery(ctx, interfaces.AssignDeliveryCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: rider,
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandoffOrder(ctx, "t1", task.ID, rider))

	current, err := svc.GetDeliveryStatus(ctx, "t1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnCamino, current.Status)
	require.NotNil(t, current.TiempoSalida)

	// GPS ping while en route.
	tracked, err := svc.UpdateRiderLocation(ctx, interfaces.RiderLocationCommand{
		TenantID: "t1", OrderID: "o1", Lat: -12.04, Lon: -77.03, Actor: rider,
	})
	require.NoError(t, err)
	require.NotNil(t, tracked.LastLocation)
	assert.InDelta(t, -12.04, tracked.LastLocation.Lat, 1e-9)

	done, err := svc.ConfirmDelivered(ctx, interfaces.ConfirmDeliveredCommand{
		TenantID: "t1", DeliveryID: task.ID, ProofData: []byte("jpeg-bytes"), Actor: rider,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEntregado, done.Status)
	require.NotNil(t, done.TiempoLlegada)
	assert.NotEmpty(t, done.ProofURL)

	order, err := store.Orders().Get(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEntregado, order.Status)

	require.Len(t, bus.PublishedOf(interfaces.EventOrderEnRoute), 1)
	require.Len(t, bus.PublishedOf(interfaces.EventOrderDelivered), 1)
}

func TestHandoffBeforeAssignRejected(t *testing.T) {
	svc, _, _ := newFixture()
	task := receiveTask(t, svc, "o1")

	err := svc.HandoffOrder(context.Background(), "t1", task.ID, rider)
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestLocationRules(t *testing.T) {
	svc, _, _ := newFixture()
	task := receiveTask(t, svc, "o1")
	ctx := context.Background()

	// Not en route yet.
	_, err := svc.UpdateRiderLocation(ctx, interfaces.RiderLocationCommand{
		TenantID: "t1", OrderID: "o1", Lat: 1, Lon: 1, Actor: rider,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.AssignDelivery(ctx, interfaces.AssignDeliveryCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: rider,
	})
	require.NoError(t, err)
	require.NoError(t, svc.HandoffOrder(ctx, "t1", task.ID, rider))

	// Only the assigned rider may post.
	stranger := domain.Actor{ID: "rider-2", Type: domain.UserTypeStaff, Role: domain.RoleRepartidor}
	_, err = svc.UpdateRiderLocation(ctx, interfaces.RiderLocationCommand{
		TenantID: "t1", OrderID: "o1", Lat: 1, Lon: 1, Actor: stranger,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// A customer can never post, not even for their own order.
	customer := domain.Actor{ID: "cust-1", Type: domain.UserTypeCustomer}
	_, err = svc.UpdateRiderLocation(ctx, interfaces.RiderLocationCommand{
		TenantID: "t1", OrderID: "o1", Lat: 1, Lon: 1, Actor: customer,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// The assigned rider still can.
	_, err = svc.UpdateRiderLocation(ctx, interfaces.RiderLocationCommand{
		TenantID: "t1", OrderID: "o1", Lat: 1, Lon: 1, Actor: rider,
	})
	require.NoError(t, err)
}

func TestSyncMetrics(t *testing.T) {
	svc, store, bus := newFixture()
	seedOrder(t, store, "o1", domain.StatusListoParaEntrega)
	task := receiveTask(t, svc, "o1")
	ctx := context.Background()

	_, err := svc.AssignDelivery(ctx, interfaces.AssignDeliveryCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: rider,
	})
	require.NoError(t, err)
	require.NoError(t, svc.HandoffOrder(ctx, "t1", task.ID, rider))
	_, err = svc.ConfirmDelivered(ctx, interfaces.ConfirmDeliveredCommand{
		TenantID: "t1", DeliveryID: task.ID, Actor: rider,
	})
	require.NoError(t, err)

	count, err := svc.SyncMetrics(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, bus.PublishedOf(interfaces.EventDeliveryMetricsUpdated), 1)
}
