package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"orderflow/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondDomainError maps the workflow error taxonomy onto HTTP statuses with
// stable machine-readable error keys.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		respondJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, domain.ErrConcurrentModification):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: "concurrent_modification", Message: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "store_unavailable", Message: err.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "internal server error"})
	}
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: message})
}

func respondUnauthorized(w http.ResponseWriter) {
	respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "missing identity headers"})
}

func respondMethodNotAllowed(w http.ResponseWriter) {
	respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
}
