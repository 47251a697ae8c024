package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
	"orderflow/internal/interfaces"
)

// maxProofBytes caps the proof-of-delivery upload.
const maxProofBytes = 5 << 20

type DeliveryHandler struct {
	service interfaces.DeliveryService
	logger  logger.Logger
}

func NewDeliveryHandler(service interfaces.DeliveryService, logger logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		service: service,
		logger:  logger,
	}
}

type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type DeliveryResponse struct {
	TenantID      string           `json:"tenant_id"`
	DeliveryID    string           `json:"id_delivery"`
	OrderID       string           `json:"id_order"`
	StaffID       string           `json:"id_staff,omitempty"`
	Address       string           `json:"direccion"`
	CustomerID    string           `json:"id_customer,omitempty"`
	Status        string           `json:"status"`
	AssignedAt    *time.Time       `json:"assigned_at,omitempty"`
	TiempoSalida  *time.Time       `json:"tiempo_salida,omitempty"`
	TiempoLlegada *time.Time       `json:"tiempo_llegada,omitempty"`
	LastLocation  *domain.Location `json:"last_location,omitempty"`
	ProofURL      string           `json:"proof_url,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func deliveryResponse(d *domain.DeliveryTask) DeliveryResponse {
	return DeliveryResponse{
		TenantID:      d.TenantID,
		DeliveryID:    d.ID,
		OrderID:       d.OrderID,
		StaffID:       d.StaffID,
		Address:       d.Address,
		CustomerID:    d.CustomerID,
		Status:        string(d.Status),
		AssignedAt:    d.AssignedAt,
		TiempoSalida:  d.TiempoSalida,
		TiempoLlegada: d.TiempoLlegada,
		LastLocation:  d.LastLocation,
		ProofURL:      d.ProofURL,
		UpdatedAt:     d.UpdatedAt,
	}
}

// HandleDeliveries serves GET /deliveries, the tenant's task list.
func (h *DeliveryHandler) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, _, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	tasks, err := h.service.ListDeliveries(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	resp := make([]DeliveryResponse, len(tasks))
	for i, d := range tasks {
		resp[i] = deliveryResponse(d)
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleDelivery serves a single task:
//
//	GET  /deliveries/{id}
//	POST /deliveries/{id}/assign
//	POST /deliveries/{id}/handoff
//	POST /deliveries/{id}/confirm   (body: optional JPEG proof)
func (h *DeliveryHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	tenantID, actor, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		respondBadRequest(w, "delivery id is required")
		return
	}
	deliveryID := parts[1]

	action := ""
	if len(parts) == 3 {
		action = parts[2]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		task, err := h.service.GetDeliveryStatus(r.Context(), tenantID, deliveryID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, deliveryResponse(task))

	case action == "assign" && r.Method == http.MethodPost:
		task, err := h.service.AssignDelivery(r.Context(), interfaces.AssignDeliveryCommand{
			TenantID:   tenantID,
			DeliveryID: deliveryID,
			Actor:      actor,
		})
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, deliveryResponse(task))

	case action == "handoff" && r.Method == http.MethodPost:
		if err := h.service.HandoffOrder(r.Context(), tenantID, deliveryID, actor); err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id_delivery": deliveryID, "status": string(domain.StatusEnCamino)})

	case action == "confirm" && r.Method == http.MethodPost:
		proof, err := io.ReadAll(io.LimitReader(r.Body, maxProofBytes))
		if err != nil {
			respondBadRequest(w, "could not read proof body")
			return
		}
		task, err := h.service.ConfirmDelivered(r.Context(), interfaces.ConfirmDeliveredCommand{
			TenantID:   tenantID,
			DeliveryID: deliveryID,
			ProofData:  proof,
			Actor:      actor,
		})
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, deliveryResponse(task))

	default:
		respondMethodNotAllowed(w)
	}
}

// HandleLocation serves PUT /deliveries/orders/{orderID}/location, the rider's
// GPS ping, addressed by order so the rider app does not need the task id.
func (h *DeliveryHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, actor, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[2] == "" || parts[3] != "location" {
		respondBadRequest(w, "expected /deliveries/orders/{order_id}/location")
		return
	}

	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	task, err := h.service.UpdateRiderLocation(r.Context(), interfaces.RiderLocationCommand{
		TenantID: tenantID,
		OrderID:  parts[2],
		Lat:      req.Lat,
		Lon:      req.Lon,
		Actor:    actor,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, deliveryResponse(task))
}

// HandleSync serves POST /deliveries/metrics/sync.
func (h *DeliveryHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
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
