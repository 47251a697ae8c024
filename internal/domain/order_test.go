package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
)

func TestNewOrderValidation(t *testing.T) {
	now := time.Now()

	_, err := domain.NewOrder("", "o1", "c1", []string{"p1"}, nil, now)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = domain.NewOrder("t1", "o1", "", []string{"p1"}, nil, now)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = domain.NewOrder("t1", "o1", "c1", nil, nil, now)
	require.ErrorIs(t, err, domain.ErrValidation)

	order, err := domain.NewOrder("t1", "o1", "c1", []string{"p1", "p2"}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecibido, order.Status)
	assert.False(t, order.StaffConfirmedDelivered)
	assert.False(t, order.CustomerConfirmedDelivered)
}

func TestCancellable(t *testing.T) {
	order := &domain.Order{Status: domain.StatusRecibido}
	assert.True(t, order.Cancellable())

	for _, s := range []domain.Status{
		domain.StatusEnPreparacion, domain.StatusListoParaEntrega, domain.StatusAsignado,
		domain.StatusEnCamino, domain.StatusEntregado, domain.StatusCancelado,
	} {
		order.Status = s
		assert.False(t, order.Cancellable(), "cancellable in %s", s)
	}
}

// Closure requires both confirmations, in either order.
func TestConfirmationLatch(t *testing.T) {
	order := &domain.Order{TenantID: "t1", ID: "o1"}

	c := domain.ConfirmationsOf(order)
	assert.False(t, c.Done)

	order.StaffConfirmedDelivered = true
	c = domain.ConfirmationsOf(order)
	assert.True(t, c.StaffConfirmed)
	assert.False(t, c.CustomerConfirmed)
	assert.False(t, c.Done)

	order.CustomerConfirmedDelivered = true
	c = domain.ConfirmationsOf(order)
	assert.True(t, c.Done)

	// Reverse order.
	other := &domain.Order{CustomerConfirmedDelivered: true}
	assert.False(t, domain.ConfirmationsOf(other).Done)
	other.StaffConfirmedDelivered = true
	assert.True(t, domain.ConfirmationsOf(other).Done)
}

func TestPrepDuration(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(18 * time.Minute)

	ticket := &domain.KitchenTicket{StartTime: &start, EndTime: &end}
	minutes, ok := ticket.PrepDuration()
	require.True(t, ok)
	assert.InDelta(t, 18.0, minutes, 1e-9)

	_, ok = (&domain.KitchenTicket{StartTime: &start}).PrepDuration()
	assert.False(t, ok)

	_, ok = (&domain.KitchenTicket{StartTime: &end, EndTime: &start}).PrepDuration()
	assert.False(t, ok)
}

func TestDeliveryTaskDefaults(t *testing.T) {
	task := domain.NewDeliveryTask("t1", "d1", "o1", "", "c1", time.Now())
	assert.Equal(t, "por_definir", task.Address)
	assert.Equal(t, domain.StatusListoParaEntrega, task.Status)

	task = domain.NewDeliveryTask("t1", "d1", "o1", "Av. Siempre Viva 742", "c1", time.Now())
	assert.Equal(t, "Av. Siempre Viva 742", task.Address)
}

func TestTrackableBy(t *testing.T) {
	task := &domain.DeliveryTask{StaffID: "s1"}
	assert.True(t, task.TrackableBy("s1"))
	assert.False(t, task.TrackableBy("s2"))

	unassigned := &domain.DeliveryTask{}
	assert.False(t, unassigned.TrackableBy("s1"))
	assert.False(t, unassigned.TrackableBy(""))
}
