package http

import (
	"net/http"
	"strings"
	"time"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type KitchenHandler struct {
	service interfaces.KitchenService
	logger  logger.Logger
}

func NewKitchenHandler(service interfaces.KitchenService, logger logger.Logger) *KitchenHandler {
	return &KitchenHandler{
		service: service,
		logger:  logger,
	}
}

type TicketResponse struct {
	TenantID   string     `json:"tenant_id"`
	OrderID    string     `json:"order_id"`
	Status     string     `json:"status"`
	StaffIDs   []string   `json:"list_id_staff"`
	AcceptedBy string     `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	PackedBy   string     `json:"packed_by,omitempty"`
	PackedAt   *time.Time `json:"packed_at,omitempty"`
	CustomerID string     `json:"id_customer,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func ticketResponse(t *domain.KitchenTicket) TicketResponse {
	return TicketResponse{
		TenantID:   t.TenantID,
		OrderID:    t.OrderID,
		Status:     string(t.Status),
		StaffIDs:   t.StaffIDs,
		AcceptedBy: t.AcceptedBy,
		AcceptedAt: t.AcceptedAt,
		PackedBy:   t.PackedBy,
		PackedAt:   t.PackedAt,
		CustomerID: t.CustomerID,
		UpdatedAt:  t.UpdatedAt,
	}
}

// HandleQueue serves GET /kitchen/orders, the tenant's ticket queue.
func (h *KitchenHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, _, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	tickets, err := h.service.GetQueue(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	resp := make([]TicketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = ticketResponse(t)
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleTicket serves the cook actions:
//
//	POST /kitchen/orders/{id}/accept
//	POST /kitchen/orders/{id}/pack
func (h *KitchenHandler) HandleTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, actor, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[2] == "" {
		respondBadRequest(w, "expected /kitchen/orders/{id}/accept or /pack")
		return
	}
	orderID := parts[2]

	var err error
	switch parts[3] {
	case "accept":
		err = h.service.AcceptOrder(r.Context(), tenantID, orderID, actor)
	case "pack":
		err = h.service.PackOrder(r.Context(), tenantID, orderID, actor)
	default:
		respondBadRequest(w, "unknown action: "+parts[3])
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"order_id": orderID})
}

// HandleSync serves POST /kitchen/metrics/sync, pushing prep durations onto
// the bus for the analytics snapshots.
func (h *KitchenHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, _, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	count, err := h.service.SyncMetrics(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"published": count})
}
