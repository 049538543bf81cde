package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/pharmacy-management/internal/auth"
	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
	"github.com/frahmantamala/pharmacy-management/internal/transport/rest"
	"github.com/frahmantamala/pharmacy-management/internal/transport/swagger"
)

var (
	openAPIPath    string
	withReconciler bool
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and gateway webhooks`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startHTTPServer(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	},
}

func startHTTPServer() error {
	ctx := context.Background()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	router := setupRoutes(ctx, app)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	if withReconciler {
		r := app.reconciler()
		r.Start(ctx)
		defer r.Shutdown()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		app.Logger.Info("starting HTTP server", "address", addr, "env", cfg.Env)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		app.Logger.Info("received signal, shutting down", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	app.Logger.Info("server stopped")
	return nil
}

func setupRoutes(ctx context.Context, app *application) *chi.Mux {
	cfg := app.Config
	base := transport.NewBaseHandler(app.Logger)

	doc, err := swagger.Load(ctx, openAPIPath)
	if err != nil {
		// docs are optional; the API serves without them
		app.Logger.Warn("openapi document not loaded", "path", openAPIPath, "error", err)
	}

	checks := map[string]rest.CheckFunc{
		"postgres": func(ctx context.Context) error { return app.DB.SQL.PingContext(ctx) },
	}
	if app.Redis != nil {
		checks["redis"] = app.Redis.Ping
	}

	var metricsHandler http.Handler
	if app.Registry != nil {
		metricsHandler = promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(app.Logger.Handler(), slog.LevelError),
		})
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Dependencies{
		Logger:         app.Logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthChecks:   checks,
		Tokens:         app.Auth,
		Permissions:    auth.NewPermissionChecker(),
		Auth:           auth.NewHandler(base, app.Auth),
		Payment:        payment.NewHandler(base, app.Payments),
		Webhook:        payment.NewWebhookHandler(base, app.Payments, cfg.Payment.SignatureHeader),
		Catalog:        catalog.NewHandler(base, app.Catalog),
		Consultation:   consultation.NewHandler(base, app.Consultations),
		Metrics:        metricsHandler,
		MetricsPath:    cfg.Observability.Metrics.Path,
		OpenAPI:        doc,
	})

	return router
}

func init() {
	httpServerCmd.Flags().StringVar(&openAPIPath, "openapi", "api/openapi.yml", "OpenAPI document served under /swagger")
	httpServerCmd.Flags().BoolVar(&withReconciler, "with-reconciler", false, "run the reconcile worker pool inside the server process")
}
