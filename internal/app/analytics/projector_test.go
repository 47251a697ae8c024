package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

func ptr(t time.Time) *time.Time { return &t }

// seedChain writes one fully progressed order across the three trackers, with
// ten-minute gaps between every stage timestamp.
func seedChain(t *testing.T, store interface {
	Orders() interfaces.OrderRepository
	Tickets() interfaces.TicketRepository
	Deliveries() interfaces.DeliveryRepository
}, orderID string, t0 time.Time) {
	t.Helper()
	ctx := context.Background()

	order, err := domain.NewOrder("t1", orderID, "cust-1", []string{"p1"}, nil, t0)
	require.NoError(t, err)
	order.Status = domain.StatusEntregado
	require.NoError(t, store.Orders().Create(ctx, order))

	ticket := domain.NewKitchenTicket("t1", orderID, "cust-1", t0)
	ticket.Status = domain.StatusListoParaEntrega
	ticket.AcceptedBy = "cook-1"
	ticket.AcceptedAt = ptr(t0.Add(10 * time.Minute))
	ticket.StartTime = ptr(t0.Add(10 * time.Minute))
	ticket.PackedBy = "cook-1"
	ticket.PackedAt = ptr(t0.Add(20 * time.Minute))
	ticket.EndTime = ptr(t0.Add(20 * time.Minute))
	require.NoError(t, store.Tickets().CreateIfAbsent(ctx, ticket))

	task := domain.NewDeliveryTask("t1", "d-"+orderID, orderID, "Calle 1", "cust-1", t0)
	task.Status = domain.StatusEntregado
	task.StaffID = "rider-1"
	task.TiempoSalida = ptr(t0.Add(30 * time.Minute))
	task.TiempoLlegada = ptr(t0.Add(40 * time.Minute))
	require.NoError(t, store.Deliveries().CreateIfAbsent(ctx, task))
}

func TestWorkflowKPIsFullChain(t *testing.T) {
	svc, store := newFixture()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedChain(t, store, "o1", t0)

	kpis, err := svc.GetWorkflowKPIs(context.Background(), "t1")
	require.NoError(t, err)

	for _, stage := range []string{
		interfaces.StageRecibidoAAceptado,
		interfaces.StageAceptadoAEmpacado,
		interfaces.StageEmpacadoASalida,
		interfaces.StageSalidaAEntregado,
	} {
		agg := kpis.Timings[stage]
		assert.Equal(t, 1, agg.Count, stage)
		assert.InDelta(t, 10.0, agg.AvgMin, 1e-9, stage)
		assert.InDelta(t, 10.0, agg.P50Min, 1e-9, stage)
		assert.InDelta(t, 10.0, agg.P95Min, 1e-9, stage)
	}

	assert.Equal(t, map[string]int{"cook-1": 1}, kpis.Actors.AcceptedBy)
	assert.Equal(t, map[string]int{"cook-1": 1}, kpis.Actors.PackedBy)
	assert.Equal(t, map[string]int{"rider-1": 1}, kpis.Actors.DeliveredBy)
}

// An order missing one stage's timestamps drops out of that stage only.
func TestWorkflowKPIsPartialChain(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedChain(t, store, "o1", t0)

	order, err := domain.NewOrder("t1", "o2", "cust-1", []string{"p1"}, nil, t0)
	require.NoError(t, err)
	require.NoError(t, store.Orders().Create(ctx, order))
	ticket := domain.NewKitchenTicket("t1", "o2", "cust-1", t0)
	ticket.AcceptedBy = "cook-2"
	ticket.AcceptedAt = ptr(t0.Add(4 * time.Minute))
	ticket.StartTime = ptr(t0.Add(4 * time.Minute))
	require.NoError(t, store.Tickets().CreateIfAbsent(ctx, ticket))

	kpis, err := svc.GetWorkflowKPIs(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 2, kpis.Timings[interfaces.StageRecibidoAAceptado].Count)
	assert.Equal(t, 1, kpis.Timings[interfaces.StageAceptadoAEmpacado].Count)
	assert.Equal(t, 1, kpis.Timings[interfaces.StageSalidaAEntregado].Count)
	assert.InDelta(t, 7.0, kpis.Timings[interfaces.StageRecibidoAAceptado].AvgMin, 1e-9)
}

// No samples yields zero-valued aggregates, never nulls or NaN.
func TestWorkflowKPIsEmpty(t *testing.T) {
	svc, _ := newFixture()

	kpis, err := svc.GetWorkflowKPIs(context.Background(), "t1")
	require.NoError(t, err)

	require.Len(t, kpis.Timings, 4)
	for stage, agg := range kpis.Timings {
		assert.Zero(t, agg.Count, stage)
		assert.Zero(t, agg.AvgMin, stage)
		assert.Zero(t, agg.P50Min, stage)
		assert.Zero(t, agg.P95Min, stage)
	}
	assert.Empty(t, kpis.Actors.DeliveredBy)
}

func TestWorkflowKPIsAggregation(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Four orders with accept spans of 2, 4, 6 and 8 minutes.
	for i, minutes := range []time.Duration{2, 4, 6, 8} {
		id := string(rune('a' + i))
		order, err := domain.NewOrder("t1", id, "cust-1", []string{"p1"}, nil, t0)
		require.NoError(t, err)
		require.NoError(t, store.Orders().Create(ctx, order))
		ticket := domain.NewKitchenTicket("t1", id, "cust-1", t0)
		ticket.AcceptedAt = ptr(t0.Add(minutes * time.Minute))
		require.NoError(t, store.Tickets().CreateIfAbsent(ctx, ticket))
	}

	kpis, err := svc.GetWorkflowKPIs(ctx, "t1")
	require.NoError(t, err)

	agg := kpis.Timings[interfaces.StageRecibidoAAceptado]
	assert.Equal(t, 4, agg.Count)
	assert.InDelta(t, 5.0, agg.AvgMin, 1e-9)
	// Even sample count: median is the mean of the middle two.
	assert.InDelta(t, 5.0, agg.P50Min, 1e-9)
	// floor(0.95*4)-1 = 2: the third smallest sample.
	assert.InDelta(t, 6.0, agg.P95Min, 1e-9)
}

// With a single sample the p95 index underflows and wraps to the only sample.
func TestWorkflowKPIsP95SingleSample(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	order, err := domain.NewOrder("t1", "o1", "cust-1", []string{"p1"}, nil, t0)
	require.NoError(t, err)
	require.NoError(t, store.Orders().Create(ctx, order))
	ticket := domain.NewKitchenTicket("t1", "o1", "cust-1", t0)
	ticket.AcceptedAt = ptr(t0.Add(3 * time.Minute))
	require.NoError(t, store.Tickets().CreateIfAbsent(ctx, ticket))

	kpis, err := svc.GetWorkflowKPIs(ctx, "t1")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, kpis.Timings[interfaces.StageRecibidoAAceptado].P95Min, 1e-9)
}
