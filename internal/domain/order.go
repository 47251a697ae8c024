package domain

import "time"

// Order is the canonical ledger record for a food order. It owns the status
// field and the two delivery-confirmation flags; kitchen and delivery keep
// their own working records keyed by the order id.
type Order struct {
	TenantID                   string
	ID                         string
	CustomerID                 string
	ProductIDs                 []string
	Items                      []OrderItem
	Status                     Status
	StaffConfirmedDelivered    bool
	CustomerConfirmedDelivered bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// OrderItem is a denormalized line of the order, kept for kitchen display.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// NewOrder builds a ledger record in the initial state.
func NewOrder(tenantID, id, customerID string, productIDs []string, items []OrderItem, now time.Time) (*Order, error) {
	if tenantID == "" {
		return nil, NewValidationError("tenant_id", "required")
	}
	if customerID == "" {
		return nil, NewValidationError("id_customer", "required")
	}
	if len(productIDs) == 0 {
		return nil, NewValidationError("list_id_products", "must include at least one product")
	}
	return &Order{
		TenantID:   tenantID,
		ID:         id,
		CustomerID: customerID,
		ProductIDs: productIDs,
		Items:      items,
		Status:     StatusRecibido,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OwnedBy reports whether the order belongs to the given customer.
func (o *Order) OwnedBy(customerID string) bool {
	return o.CustomerID == customerID
}

// Cancellable reports whether cancellation is still allowed. Once the kitchen
// has started work the order can no longer be cancelled.
func (o *Order) Cancellable() bool {
	return o.Status.CanTransitionTo(StatusCancelado)
}

// Confirmations is the AND-join over the two independent delivery
// confirmations. Each flag is a monotone latch: set once by its actor, never
// reset.
type Confirmations struct {
	TenantID          string `json:"tenant_id"`
	OrderID           string `json:"id_order"`
	StaffConfirmed    bool   `json:"staff_confirmed"`
	CustomerConfirmed bool   `json:"customer_confirmed"`
	Done              bool   `json:"done"`
}

// ConfirmationsOf derives the poll answer for an order.
func ConfirmationsOf(o *Order) Confirmations {
	return Confirmations{
		TenantID:          o.TenantID,
		OrderID:           o.ID,
		StaffConfirmed:    o.StaffConfirmedDelivered,
		CustomerConfirmed: o.CustomerConfirmedDelivered,
		Done:              o.StaffConfirmedDelivered && o.CustomerConfirmedDelivered,
	}
}
