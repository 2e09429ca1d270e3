package authz

import (
	"context"
	"net/http"

	"github.com/meterflow/meterflow-api/internal/models"
)

// contextKey keeps identity values from colliding with keys set by other
// packages on the same request context.
type contextKey string

const (
	tenantIDKey  contextKey = "authz.tenant_id"
	userIDKey    contextKey = "authz.user_id"
	userRolesKey contextKey = "authz.user_roles"
)

// WithIdentity attaches the authenticated caller to the context. Roles are
// normalized here once so downstream checks never see duplicates or an empty
// list.
func WithIdentity(ctx context.Context, tenantID, userID string, roles []models.UserRole) context.Context {
	if tenantID != "" {
		ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	}
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	ctx = context.WithValue(ctx, userRolesKey, models.EnsureDefaultRole(models.NormalizeRoles(roles)))
	return ctx
}

// TenantIDFromRequest returns the caller's tenant. Every tenant-scoped
// handler gates on this; a false return means the token carried no tenant.
func TenantIDFromRequest(r *http.Request) (string, bool) {
	tid, ok := r.Context().Value(tenantIDKey).(string)
	if !ok || tid == "" {
		return "", false
	}
	return tid, true
}

func UserIDFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func RolesFromRequest(r *http.Request) ([]models.UserRole, bool) {
	roles, ok := r.Context().Value(userRolesKey).([]models.UserRole)
	if !ok || !models.IsValidRoleList(roles) {
		return nil, false
	}
	return roles, true
}
