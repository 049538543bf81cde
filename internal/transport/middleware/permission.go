package middleware

import (
	"net/http"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/auth"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
	"github.com/frahmantamala/pharmacy-management/pkg/logger"
)

// RequirePermissions lets the request through when the principal holds any
// of permissions. It must run after Authenticate.
func RequirePermissions(checker auth.PermissionChecker, base *transport.BaseHandler, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				base.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
				return
			}

			if !checker.HasAnyPermission(principal.Permissions, permissions) {
				logger.FromOr(r.Context(), base.Logger).Warn("access denied: insufficient permissions",
					"user_id", principal.UserID,
					"required_permissions", permissions,
					"user_permissions", principal.Permissions)
				base.HandleError(w, internal.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
