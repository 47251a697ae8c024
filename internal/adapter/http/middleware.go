package http

import (
	"fmt"
	"net/http"
	"time"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/domain"
)

func LoggingMiddleware(logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := fmt.Sprintf("req-%d", time.Now().UnixNano())

			logger.Debug("http_request", fmt.Sprintf("%s %s", r.Method, r.URL.Path), requestID, map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			logger.Debug("http_response", "Request completed", requestID, map[string]interface{}{
				"duration_ms": duration.Milliseconds(),
			})
		})
	}
}

func RecoveryMiddleware(logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic_recovered", "Panic recovered", "", map[string]interface{}{
						"path": r.URL.Path,
					}, fmt.Errorf("%v", err))
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Identity headers. The gateway upstream authenticates the caller and forwards
// who they are; this layer only reads the result.
const (
	headerTenantID = "X-Tenant-Id"
	headerUserID   = "X-User-Id"
	headerUserType = "X-User-Type"
	headerUserRole = "X-User-Role"
)

// identity extracts the tenant and acting party from the request headers.
// ok is false when either the tenant or the user id is missing.
func identity(r *http.Request) (tenantID string, actor domain.Actor, ok bool) {
	tenantID = r.Header.Get(headerTenantID)
	actor = domain.Actor{
		ID:   r.Header.Get(headerUserID),
		Type: domain.UserType(r.Header.Get(headerUserType)),
		Role: domain.StaffRole(r.Header.Get(headerUserRole)),
	}
	if actor.Type == "" {
		actor.Type = domain.UserTypeCustomer
	}
	return tenantID, actor, tenantID != "" && actor.ID != ""
}
