package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

type OrderHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.OrderService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

type CreateOrderRequest struct {
	CustomerID string             `json:"id_customer"`
	ProductIDs []string           `json:"list_id_products"`
	Items      []domain.OrderItem `json:"items,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	TenantID          string             `json:"tenant_id"`
	OrderID           string             `json:"id_order"`
	CustomerID        string             `json:"id_customer"`
	ProductIDs        []string           `json:"list_id_products"`
	Items             []domain.OrderItem `json:"items,omitempty"`
	Status            string             `json:"status"`
	StaffConfirmed    bool               `json:"staff_confirmed_delivered"`
	CustomerConfirmed bool               `json:"customer_confirmed_delivered"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func orderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		TenantID:          o.TenantID,
		OrderID:           o.ID,
		CustomerID:        o.CustomerID,
		ProductIDs:        o.ProductIDs,
		Items:             o.Items,
		Status:            string(o.Status),
		StaffConfirmed:    o.StaffConfirmedDelivered,
		CustomerConfirmed: o.CustomerConfirmedDelivered,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// HandleOrders serves the collection: POST /orders and GET /orders.
func (h *OrderHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	tenantID, actor, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.createOrder(w, r, tenantID, actor)
	case http.MethodGet:
		orders, err := h.service.ListCustomerOrders(r.Context(), tenantID, actor)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		resp := make([]OrderResponse, len(orders))
		for i, o := range orders {
			resp[i] = orderResponse(o)
		}
		respondJSON(w, http.StatusOK, resp)
	default:
		respondMethodNotAllowed(w)
	}
}

// HandleOrder serves a single order:
//
//	GET  /orders/{id}
//	GET  /orders/{id}/status
//	GET  /orders/{id}/confirmations
//	PUT  /orders/{id}/status
//	POST /orders/{id}/cancel
//	POST /orders/{id}/confirm
func (h *OrderHandler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, actor, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		respondBadRequest(w, "order id is required")
		return
	}
	orderID := parts[1]

	action := ""
	if len(parts) == 3 {
		action = parts[2]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		order, err := h.service.GetOrder(r.Context(), tenantID, orderID, actor)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, orderResponse(order))

	case action == "status" && r.Method == http.MethodGet:
		status, err := h.service.GetOrderStatus(r.Context(), tenantID, orderID, actor)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, status)

	case action == "status" && r.Method == http.MethodPut:
		h.updateStatus(w, r, tenantID, orderID, actor)

	case action == "cancel" && r.Method == http.MethodPost:
		if err := h.service.CancelOrder(r.Context(), tenantID, orderID, actor); err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id_order": orderID, "status": string(domain.StatusCancelado)})

	case action == "confirm" && r.Method == http.MethodPost:
		if err := h.service.ConfirmDelivered(r.Context(), tenantID, orderID, actor); err != nil {
			respondDomainError(w, err)
			return
		}
		confirmations, err := h.service.CheckConfirmations(r.Context(), tenantID, orderID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, confirmations)

	case action == "confirmations" && r.Method == http.MethodGet:
		confirmations, err := h.service.CheckConfirmations(r.Context(), tenantID, orderID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, confirmations)

	default:
		respondMethodNotAllowed(w)
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request, tenantID string, actor domain.Actor) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		req.CustomerID = actor.ID
	}

	order, err := h.service.CreateOrder(r.Context(), interfaces.CreateOrderCommand{
		TenantID:   tenantID,
		CustomerID: req.CustomerID,
		ProductIDs: req.ProductIDs,
		Items:      req.Items,
		Actor:      actor,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderResponse(order))
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request, tenantID, orderID string, actor domain.Actor) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	status := domain.Status(req.Status)
	if !status.IsValid() {
		respondBadRequest(w, "unknown status: "+req.Status)
		return
	}

	err := h.service.UpdateOrderStatus(r.Context(), interfaces.UpdateOrderStatusCommand{
		TenantID: tenantID,
		OrderID:  orderID,
		Status:   status,
		Actor:    actor,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id_order": orderID, "status": req.Status})
}
