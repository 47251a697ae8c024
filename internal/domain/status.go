package domain

// Status is the lifecycle state of an order. The same value set is shared by the
// order ledger, the kitchen ticket (a prefix of it) and the delivery task (a
// suffix of it), so cross-store mirrors never need translation.
type Status string

const (
	StatusRecibido         Status = "recibido"
	StatusEnPreparacion    Status = "en_preparacion"
	StatusListoParaEntrega Status = "listo_para_entrega"
	StatusAsignado         Status = "asignado"
	StatusEnCamino         Status = "en_camino"
	StatusEntregado        Status = "entregado"
	StatusCancelado        Status = "cancelado"
)

// statusRank orders the forward path. Cancelled sits outside the path; mirrors
// compare ranks so a stale event can never move a record backwards.
var statusRank = map[Status]int{
	StatusRecibido:         1,
	StatusEnPreparacion:    2,
	StatusListoParaEntrega: 3,
	StatusAsignado:         4,
	StatusEnCamino:         5,
	StatusEntregado:        6,
}

var validTransitions = map[Status][]Status{
	StatusRecibido:         {StatusEnPreparacion, StatusCancelado},
	StatusEnPreparacion:    {StatusListoParaEntrega},
	StatusListoParaEntrega: {StatusAsignado},
	StatusAsignado:         {StatusEnCamino},
	StatusEnCamino:         {StatusEntregado},
	StatusEntregado:        {},
	StatusCancelado:        {},
}

// IsValid reports whether s is one of the known lifecycle states.
func (s Status) IsValid() bool {
	_, onPath := statusRank[s]
	return onPath || s == StatusCancelado
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusEntregado || s == StatusCancelado
}

// Rank returns the position of s on the forward path, or 0 for cancelled and
// unknown states.
func (s Status) Rank() int {
	return statusRank[s]
}

// CanTransitionTo reports whether target is a legal successor of s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Predecessors returns every status from which target is directly reachable.
// Repositories use this set as the condition of a compare-and-set status write.
func Predecessors(target Status) []Status {
	var from []Status
	for s, nexts := range validTransitions {
		for _, next := range nexts {
			if next == target {
				from = append(from, s)
			}
		}
	}
	return from
}

// MirrorPredecessors returns every status strictly below target on the forward
// path. Best-effort mirrors into the order ledger condition on this set instead
// of the direct predecessors: events arrive unordered, so a mirror may legally
// skip intermediate states but must never regress.
func MirrorPredecessors(target Status) []Status {
	targetRank, onPath := statusRank[target]
	if !onPath {
		return nil
	}
	var from []Status
	for s, r := range statusRank {
		if r < targetRank {
			from = append(from, s)
		}
	}
	return from
}

// Actor is the authenticated party requesting a transition. Identity is
// established upstream; only type, role and id reach the domain.
type Actor struct {
	ID   string
	Type UserType
	Role StaffRole
}

type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeStaff    UserType = "staff"
)

type StaffRole string

const (
	RoleCocina     StaffRole = "cocina"
	RoleRepartidor StaffRole = "repartidor"
	RoleAdmin      StaffRole = "admin"
)

// edgeRoles maps each target status to the staff roles allowed to drive that
// edge. Customers are handled separately: their only edge is cancellation.
var edgeRoles = map[Status][]StaffRole{
	StatusEnPreparacion:    {RoleCocina, RoleAdmin},
	StatusListoParaEntrega: {RoleCocina, RoleAdmin},
	StatusAsignado:         {RoleRepartidor, RoleAdmin},
	StatusEnCamino:         {RoleRepartidor, RoleAdmin},
	StatusEntregado:        {RoleRepartidor, RoleAdmin},
	StatusCancelado:        {RoleCocina, RoleRepartidor, RoleAdmin},
}

// AuthorizeTransition checks that the actor's role may drive the edge ending in
// target. It deliberately does not check edge legality: callers validate the
// edge first, so transition validity and authorization fail with distinct
// errors.
func AuthorizeTransition(actor Actor, target Status) error {
	if actor.Type == UserTypeCustomer {
		if target == StatusCancelado {
			return nil
		}
		return NewForbiddenError("customers may only cancel their own orders")
	}
	if actor.Type != UserTypeStaff {
		return NewForbiddenError("unknown actor type")
	}
	for _, role := range edgeRoles[target] {
		if actor.Role == role {
			return nil
		}
	}
	return NewForbiddenError("role " + string(actor.Role) + " may not set status " + string(target))
}

// ValidateTransition checks edge legality from current to target.
func ValidateTransition(current, target Status) error {
	if !target.IsValid() || !current.CanTransitionTo(target) {
		return NewInvalidTransitionError(current, target)
	}
	return nil
}
