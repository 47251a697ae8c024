package analytics

import (
	"sort"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

// projectKPIs joins the three trackers by order id and reduces the four stage
// spans to count/mean/median/p95. An order contributes to a stage only when
// both of that stage's timestamps exist and are in order; nothing else about
// the order matters, so partially progressed and cancelled orders degrade
// gracefully.
func projectKPIs(
	tenantID string,
	orders []*domain.Order,
	tickets []*domain.KitchenTicket,
	deliveries []*domain.DeliveryTask,
) *interfaces.WorkflowKPIs {
	ticketsByOrder := make(map[string]*domain.KitchenTicket, len(tickets))
	for _, t := range tickets {
		ticketsByOrder[t.OrderID] = t
	}
	deliveriesByOrder := make(map[string]*domain.DeliveryTask, len(deliveries))
	for _, d := range deliveries {
		deliveriesByOrder[d.OrderID] = d
	}

	spans := map[string][]float64{
		interfaces.StageRecibidoAAceptado: {},
		interfaces.StageAceptadoAEmpacado: {},
		interfaces.StageEmpacadoASalida:   {},
		interfaces.StageSalidaAEntregado:  {},
	}

	for _, o := range orders {
		ticket := ticketsByOrder[o.ID]
		task := deliveriesByOrder[o.ID]

		if ticket != nil && ticket.AcceptedAt != nil && !ticket.AcceptedAt.Before(o.CreatedAt) {
			spans[interfaces.StageRecibidoAAceptado] = append(
				spans[interfaces.StageRecibidoAAceptado],
				ticket.AcceptedAt.Sub(o.CreatedAt).Minutes())
		}
		if ticket != nil {
			if minutes, ok := ticket.PrepDuration(); ok {
				spans[interfaces.StageAceptadoAEmpacado] = append(
					spans[interfaces.StageAceptadoAEmpacado], minutes)
			}
			if task != nil && ticket.PackedAt != nil && task.TiempoSalida != nil &&
				!task.TiempoSalida.Before(*ticket.PackedAt) {
				spans[interfaces.StageEmpacadoASalida] = append(
					spans[interfaces.StageEmpacadoASalida],
					task.TiempoSalida.Sub(*ticket.PackedAt).Minutes())
			}
		}
		if task != nil {
			if minutes, ok := task.RouteDuration(); ok {
				spans[interfaces.StageSalidaAEntregado] = append(
					spans[interfaces.StageSalidaAEntregado], minutes)
			}
		}
	}

	timings := make(map[string]interfaces.StageAggregate, len(spans))
	for stage, samples := range spans {
		timings[stage] = aggregate(samples)
	}

	tallies := interfaces.ActorTallies{
		AcceptedBy:  map[string]int{},
		PackedBy:    map[string]int{},
		DeliveredBy: map[string]int{},
	}
	for _, t := range tickets {
		if t.AcceptedBy != "" {
			tallies.AcceptedBy[t.AcceptedBy]++
		}
		if t.PackedBy != "" {
			tallies.PackedBy[t.PackedBy]++
		}
	}
	for _, d := range deliveries {
		if d.Status == domain.StatusEntregado && d.StaffID != "" {
			tallies.DeliveredBy[d.StaffID]++
		}
	}

	return &interfaces.WorkflowKPIs{
		TenantID: tenantID,
		Timings:  timings,
		Actors:   tallies,
	}
}

// aggregate reduces a sample set. Zero samples yields all-zero fields. The p95
// index is floor(0.95*n)-1 counted from the sorted front, wrapping to the back
// for a single sample.
func aggregate(samples []float64) interfaces.StageAggregate {
	n := len(samples)
	if n == 0 {
		return interfaces.StageAggregate{}
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	idx := int(0.95*float64(n)) - 1
	if idx < 0 {
		idx += n
	}

	return interfaces.StageAggregate{
		Count:  n,
		AvgMin: sum / float64(n),
		P50Min: median,
		P95Min: sorted[idx],
	}
}
