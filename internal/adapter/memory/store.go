// Package memory implements the store and bus contracts on mutex-guarded maps.
// It preserves the conditional-write semantics of the postgres adapter so
// service tests exercise the same race and idempotency behavior without a
// server.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type key struct {
	tenantID string
	id       string
}

// Store holds all four entity tables plus the staff directory.
type Store struct {
	mu         sync.RWMutex
	orders     map[key]*domain.Order
	tickets    map[key]*domain.KitchenTicket
	deliveries map[key]*domain.DeliveryTask
	metrics    map[key]*domain.AnalyticsMetric
	staff      map[key]*domain.StaffMember

	// FailNext, when set, makes the next write return ErrStoreUnavailable.
	// Tests use it to assert the asymmetric failure policy.
	FailNext bool
}

func NewStore() *Store {
	return &Store{
		orders:     make(map[key]*domain.Order),
		tickets:    make(map[key]*domain.KitchenTicket),
		deliveries: make(map[key]*domain.DeliveryTask),
		metrics:    make(map[key]*domain.AnalyticsMetric),
		staff:      make(map[key]*domain.StaffMember),
	}
}

func (s *Store) failNext(op string) error {
	if s.FailNext {
		s.FailNext = false
		return domain.NewStoreUnavailableError(op, context.DeadlineExceeded)
	}
	return nil
}

// AddStaff seeds the staff directory for tests and local runs.
func (s *Store) AddStaff(member *domain.StaffMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[key{member.TenantID, member.ID}] = member
}

func (s *Store) Orders() interfaces.OrderRepository        { return &orderRepo{s} }
func (s *Store) Tickets() interfaces.TicketRepository      { return &ticketRepo{s} }
func (s *Store) Deliveries() interfaces.DeliveryRepository { return &deliveryRepo{s} }
func (s *Store) Metrics() interfaces.MetricRepository      { return &metricRepo{s} }
func (s *Store) Staff() interfaces.StaffRepository         { return &staffRepo{s} }

// --- orders ---

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("orders.create"); err != nil {
		return err
	}
	cp := *order
	r.s.orders[key{order.TenantID, order.ID}] = &cp
	return nil
}

func (r *orderRepo) Get(_ context.Context, tenantID, orderID string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[key{tenantID, orderID}]
	if !ok {
		return nil, domain.NewNotFoundError("order", orderID)
	}
	cp := *order
	return &cp, nil
}

func (r *orderRepo) ListByTenant(_ context.Context, tenantID string) ([]*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Order
	for k, o := range r.s.orders {
		if k.tenantID == tenantID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *orderRepo) ListByCustomer(_ context.Context, tenantID, customerID string) ([]*domain.Order, error) {
	all, _ := r.ListByTenant(nil, tenantID)
	var out []*domain.Order
	for _, o := range all {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, tenantID, orderID string, status domain.Status, from []domain.Status, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("orders.update_status"); err != nil {
		return err
	}
	order, ok := r.s.orders[key{tenantID, orderID}]
	if !ok {
		return domain.NewNotFoundError("order", orderID)
	}
	if !statusIn(order.Status, from) {
		return domain.NewConcurrentModificationError("order", orderID)
	}
	order.Status = status
	order.UpdatedAt = now
	return nil
}

func (r *orderRepo) SetConfirmation(_ context.Context, tenantID, orderID string, byStaff bool, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("orders.set_confirmation"); err != nil {
		return err
	}
	order, ok := r.s.orders[key{tenantID, orderID}]
	if !ok {
		return domain.NewNotFoundError("order", orderID)
	}
	if byStaff {
		order.StaffConfirmedDelivered = true
	} else {
		order.CustomerConfirmedDelivered = true
	}
	order.UpdatedAt = now
	return nil
}

// --- kitchen tickets ---

type ticketRepo struct{ s *Store }

func (r *ticketRepo) CreateIfAbsent(_ context.Context, ticket *domain.KitchenTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("kitchen.create"); err != nil {
		return err
	}
	k := key{ticket.TenantID, ticket.OrderID}
	if _, exists := r.s.tickets[k]; exists {
		return nil
	}
	cp := *ticket
	cp.StaffIDs = append([]string{}, ticket.StaffIDs...)
	r.s.tickets[k] = &cp
	return nil
}

func (r *ticketRepo) Get(_ context.Context, tenantID, orderID string) (*domain.KitchenTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[key{tenantID, orderID}]
	if !ok {
		return nil, domain.NewNotFoundError("kitchen ticket", orderID)
	}
	cp := *ticket
	cp.StaffIDs = append([]string{}, ticket.StaffIDs...)
	return &cp, nil
}

func (r *ticketRepo) ListByTenant(_ context.Context, tenantID string) ([]*domain.KitchenTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.KitchenTicket
	for k, t := range r.s.tickets {
		if k.tenantID == tenantID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ticketRepo) ListByStatus(_ context.Context, tenantID string, status domain.Status) ([]*domain.KitchenTicket, error) {
	all, _ := r.ListByTenant(nil, tenantID)
	var out []*domain.KitchenTicket
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *ticketRepo) Accept(_ context.Context, tenantID, orderID, staffID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("kitchen.accept"); err != nil {
		return err
	}
	ticket, ok := r.s.tickets[key{tenantID, orderID}]
	if !ok {
		return domain.NewNotFoundError("kitchen ticket", orderID)
	}
	if ticket.Status != domain.StatusRecibido {
		return domain.NewConcurrentModificationError("kitchen ticket", orderID)
	}
	ticket.Status = domain.StatusEnPreparacion
	if !contains(ticket.StaffIDs, staffID) {
		ticket.StaffIDs = append(ticket.StaffIDs, staffID)
	}
	ticket.AcceptedBy = staffID
	ticket.AcceptedAt = &now
	ticket.StartTime = &now
	ticket.UpdatedAt = now
	return nil
}

func (r *ticketRepo) Pack(_ context.Context, tenantID, orderID, staffID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("kitchen.pack"); err != nil {
		return err
	}
	ticket, ok := r.s.tickets[key{tenantID, orderID}]
	if !ok {
		return domain.NewNotFoundError("kitchen ticket", orderID)
	}
	if ticket.Status != domain.StatusEnPreparacion {
		return domain.NewConcurrentModificationError("kitchen ticket", orderID)
	}
	ticket.Status = domain.StatusListoParaEntrega
	if ticket.PackedBy == "" {
		ticket.PackedBy = staffID
	}
	ticket.PackedAt = &now
	ticket.EndTime = &now
	ticket.UpdatedAt = now
	return nil
}

// --- delivery tasks ---

type deliveryRepo struct{ s *Store }

func (r *deliveryRepo) CreateIfAbsent(_ context.Context, task *domain.DeliveryTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("delivery.create"); err != nil {
		return err
	}
	for k, d := range r.s.deliveries {
		if k.tenantID == task.TenantID && d.OrderID == task.OrderID {
			return nil
		}
	}
	cp := *task
	r.s.deliveries[key{task.TenantID, task.ID}] = &cp
	return nil
}

func (r *deliveryRepo) Get(_ context.Context, tenantID, deliveryID string) (*domain.DeliveryTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	task, ok := r.s.deliveries[key{tenantID, deliveryID}]
	if !ok {
		return nil, domain.NewNotFoundError("delivery", deliveryID)
	}
	cp := *task
	return &cp, nil
}

func (r *deliveryRepo) GetByOrder(_ context.Context, tenantID, orderID string) (*domain.DeliveryTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for k, d := range r.s.deliveries {
		if k.tenantID == tenantID && d.OrderID == orderID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("delivery for order", orderID)
}

func (r *deliveryRepo) ListByTenant(_ context.Context, tenantID string) ([]*domain.DeliveryTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.DeliveryTask
	for k, d := range r.s.deliveries {
		if k.tenantID == tenantID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *deliveryRepo) ListByStatus(_ context.Context, tenantID string, status domain.Status) ([]*domain.DeliveryTask, error) {
	all, _ := r.ListByTenant(nil, tenantID)
	var out []*domain.DeliveryTask
	for _, d := range all {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *deliveryRepo) Assign(_ context.Context, tenantID, deliveryID, staffID string, now time.Time) error {
	return r.conditional(tenantID, deliveryID, domain.StatusListoParaEntrega, func(d *domain.DeliveryTask) {
		d.StaffID = staffID
		d.Status = domain.StatusAsignado
		d.AssignedAt = &now
		d.UpdatedAt = now
	})
}

func (r *deliveryRepo) MarkEnRoute(_ context.Context, tenantID, deliveryID string, now time.Time) error {
	return r.conditional(tenantID, deliveryID, domain.StatusAsignado, func(d *domain.DeliveryTask) {
		d.Status = domain.StatusEnCamino
		d.TiempoSalida = &now
		d.UpdatedAt = now
	})
}

func (r *deliveryRepo) MarkDelivered(_ context.Context, tenantID, deliveryID, proofURL string, now time.Time) error {
	return r.conditional(tenantID, deliveryID, domain.StatusEnCamino, func(d *domain.DeliveryTask) {
		d.Status = domain.StatusEntregado
		d.TiempoLlegada = &now
		d.ProofURL = proofURL
		d.UpdatedAt = now
	})
}

func (r *deliveryRepo) UpdateLocation(_ context.Context, tenantID, deliveryID string, loc domain.Location, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("delivery.update_location"); err != nil {
		return err
	}
	task, ok := r.s.deliveries[key{tenantID, deliveryID}]
	if !ok {
		return domain.NewNotFoundError("delivery", deliveryID)
	}
	task.LastLocation = &loc
	task.UpdatedAt = now
	return nil
}

func (r *deliveryRepo) conditional(tenantID, deliveryID string, expect domain.Status, apply func(*domain.DeliveryTask)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("delivery.update"); err != nil {
		return err
	}
	task, ok := r.s.deliveries[key{tenantID, deliveryID}]
	if !ok {
		return domain.NewNotFoundError("delivery", deliveryID)
	}
	if task.Status != expect {
		return domain.NewConcurrentModificationError("delivery", deliveryID)
	}
	apply(task)
	return nil
}

// --- analytics metrics ---

type metricRepo struct{ s *Store }

func (r *metricRepo) Put(_ context.Context, metric *domain.AnalyticsMetric) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failNext("analytics.put"); err != nil {
		return err
	}
	cp := *metric
	r.s.metrics[key{metric.TenantID, metric.ID}] = &cp
	return nil
}

func (r *metricRepo) GetByOrder(_ context.Context, tenantID, orderID string) (*domain.AnalyticsMetric, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for k, m := range r.s.metrics {
		if k.tenantID == tenantID && m.OrderID == orderID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("metric for order", orderID)
}

func (r *metricRepo) ListByTenant(_ context.Context, tenantID string) ([]*domain.AnalyticsMetric, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.AnalyticsMetric
	for k, m := range r.s.metrics {
		if k.tenantID == tenantID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- staff directory ---

type staffRepo struct{ s *Store }

func (r *staffRepo) ListAvailableRiders(_ context.Context, tenantID string) ([]*domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.StaffMember
	for k, m := range r.s.staff {
		if k.tenantID == tenantID && m.Role == domain.RoleRepartidor && m.Status == "activo" {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func statusIn(s domain.Status, set []domain.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
