package authz

import (
	"net/http"

	"github.com/meterflow/meterflow-api/internal/models"
)

// RequireRole rejects requests whose identity does not reach the required
// role tier. It assumes the JWT middleware already ran; a request without
// roles on its context is treated as forbidden, not unauthenticated.
func RequireRole(required models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := RolesFromRequest(r)
			if !ok || !models.HasAtLeast(roles, required) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoleHandler is the inline form used when registering single routes.
func RequireRoleHandler(required models.UserRole, next http.Handler) http.Handler {
	return RequireRole(required)(next)
}
