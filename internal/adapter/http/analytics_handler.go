package http

import (
	"net/http"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/interfaces"
)

type AnalyticsHandler struct {
	service interfaces.AnalyticsService
	logger  logger.Logger
}

func NewAnalyticsHandler(service interfaces.AnalyticsService, logger logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleKPIs serves GET /analytics/kpis: per-stage timing aggregates and
// responsible-party tallies.
func (h *AnalyticsHandler) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, _, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	kpis, err := h.service.GetWorkflowKPIs(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, kpis)
}

// HandleDashboard serves GET /analytics/dashboard: the headline counters.
func (h *AnalyticsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w)
		return
	}
	tenantID, _, ok := identity(r)
	if !ok {
		respondUnauthorized(w)
		return
	}

	summary, err := h.service.GetDashboard(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
