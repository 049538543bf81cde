package middleware

import (
	"net/http"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/auth"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
	"github.com/frahmantamala/pharmacy-management/pkg/logger"
)

type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer access token and places the staff
// principal, with its pharmacy and permissions, in the request context.
func Authenticate(validator TokenValidator, base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := base.ExtractTokenFromHeader(r)
			if token == "" {
				base.HandleError(w, internal.NewUnauthorizedError("missing authorization token", internal.ErrCodeInvalidToken))
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				logger.FromOr(r.Context(), base.Logger).Warn("token validation failed", "error", err)
				base.HandleError(w, err)
				return
			}

			ctx := internal.ContextWithPrincipal(r.Context(), claims.Principal())
			ctx = logger.With(ctx, "user_id", claims.UserID, "pharmacy_id", claims.PharmacyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
