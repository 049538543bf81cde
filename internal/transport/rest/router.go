package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/pharmacy-management/internal/auth"
	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
	"github.com/frahmantamala/pharmacy-management/internal/transport/middleware"
	"github.com/frahmantamala/pharmacy-management/internal/transport/swagger"
)

// Dependencies is everything the router mounts. Nil handlers leave their
// routes out.
type Dependencies struct {
	Logger         *slog.Logger
	AllowedOrigins string
	HealthChecks   map[string]CheckFunc

	Tokens      middleware.TokenValidator
	Permissions auth.PermissionChecker

	Auth         *auth.Handler
	Payment      *payment.Handler
	Webhook      *payment.WebhookHandler
	Catalog      *catalog.Handler
	Consultation *consultation.Handler

	Metrics     http.Handler
	MetricsPath string
	OpenAPI     *swagger.Document
}

func RegisterAllRoutes(router chi.Router, deps Dependencies) {
	healthHandler := NewHealthHandler(deps.HealthChecks)
	base := transport.NewBaseHandler(deps.Logger)

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(base.Logger))
	router.Use(middleware.LoggingMiddleware(base.Logger))

	if deps.OpenAPI != nil {
		router.Get(swagger.SpecPath, deps.OpenAPI.SpecHandler().ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}
	if deps.Metrics != nil && deps.MetricsPath != "" {
		router.Handle(deps.MetricsPath, deps.Metrics)
	}

	require := func(permissions ...string) func(http.Handler) http.Handler {
		return middleware.RequirePermissions(deps.Permissions, base, permissions...)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Gateway-facing routes authenticate by signature or by reference.
		if deps.Webhook != nil {
			r.Post("/payments/webhook", deps.Webhook.HandleWebhook)
		}
		if deps.Payment != nil {
			r.Get("/payments/verify/{reference}", deps.Payment.Verify)
		}

		if deps.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", deps.Auth.Login)
				sr.Post("/refresh", deps.Auth.RefreshToken)
			})
		}

		if deps.Tokens == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(deps.Tokens, base))

			if deps.Auth != nil {
				pr.Get("/auth/me", deps.Auth.Me)
			}

			if deps.Payment != nil {
				pr.With(require(auth.PermissionProcessPayments)).
					Post("/payments/initiate", deps.Payment.Initiate)
				pr.With(require(auth.PermissionReconcilePayments)).
					Post("/payments/{reference}/fulfill", deps.Payment.Fulfill)
			}

			if deps.Catalog != nil {
				pr.Get("/services", deps.Catalog.ListServices)
			}

			if deps.Consultation != nil {
				pr.Get("/consultations/{id}/queue", deps.Consultation.GetQueueStatus)
				pr.Group(func(qr chi.Router) {
					qr.Use(require(auth.PermissionManageQueue))
					qr.Patch("/consultations/{id}/status", deps.Consultation.UpdateStatus)
					qr.Get("/doctors/{doctorId}/queue", deps.Consultation.GetDoctorQueue)
				})
			}
		})
	})
}
