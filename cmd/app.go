package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/auth"
	authPostgres "github.com/frahmantamala/pharmacy-management/internal/auth/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	catalogPostgres "github.com/frahmantamala/pharmacy-management/internal/catalog/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	consultationPostgres "github.com/frahmantamala/pharmacy-management/internal/consultation/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/core/events"
	"github.com/frahmantamala/pharmacy-management/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/pharmacy-management/internal/inventory/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
	paymentPostgres "github.com/frahmantamala/pharmacy-management/internal/payment/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/paymentgateway"
	"github.com/frahmantamala/pharmacy-management/internal/prescription"
	prescriptionPostgres "github.com/frahmantamala/pharmacy-management/internal/prescription/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/reconcile"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
	"github.com/frahmantamala/pharmacy-management/pkg/logger"
	"github.com/frahmantamala/pharmacy-management/pkg/metrics"
	"github.com/frahmantamala/pharmacy-management/pkg/redis"
)

// application holds the wired services shared by the server, the worker and
// the operator commands.
type application struct {
	Config *internal.Config
	Logger *slog.Logger
	DB     *db.Handles
	Redis  *redis.Client

	Registry         *prometheus.Registry
	PaymentMetrics   *metrics.PaymentMetrics
	ReconcileMetrics *metrics.ReconcileMetrics
	Events           *events.EventBus

	Auth          *auth.Service
	Tokens        *auth.JWTTokenGenerator
	Catalog       *catalog.Service
	Consultations *consultation.Service
	Payments      *payment.Service
}

func newApplication(ctx context.Context, cfg *internal.Config) (*application, error) {
	logger.Init(cfg.Env, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	lg := logger.L()

	handles, err := db.Connect(ctx, db.PoolConfig{
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &application{
		Config: cfg,
		Logger: lg,
		DB:     handles,
		Events: events.NewEventBus(lg),
	}

	var locker payment.Locker = payment.NoopLocker()
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			LockTTL:  cfg.Redis.LockTTL,
		})
		if err != nil {
			_ = handles.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		app.Redis = rc
		locker = rc
	}

	if cfg.Observability.Metrics.Enabled {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(handles.SQL.DB, "pharmacy"),
		)
	}
	// a nil registry yields no-op recorders
	var reg prometheus.Registerer
	if app.Registry != nil {
		reg = app.Registry
	}
	app.PaymentMetrics = metrics.NewPaymentMetrics(reg)
	app.ReconcileMetrics = metrics.NewReconcileMetrics(reg)

	fallbackPrice, err := cfg.Payment.FallbackPrice()
	if err != nil {
		app.Close()
		return nil, err
	}

	tx := db.NewTxRunner(handles.Gorm)

	inventorySvc := inventory.NewService(inventoryPostgres.NewInventoryRepository(handles.Gorm), tx, lg)
	prescriptionSvc := prescription.NewService(prescriptionPostgres.NewPrescriptionRepository(handles.Gorm), inventorySvc, tx, lg)
	app.Catalog = catalog.NewService(catalogPostgres.NewServiceRepository(handles.Gorm), lg)
	app.Consultations = consultation.NewService(
		consultationPostgres.NewConsultationRepository(handles.Gorm),
		tx,
		lg,
		cfg.Queue.AverageConsultationMinutes,
		app.PaymentMetrics,
	)

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:   cfg.Payment.GatewayBaseURL,
		SecretKey: cfg.Payment.SecretKey,
		Timeout:   cfg.Payment.Timeout,
	}, lg, app.PaymentMetrics)

	app.Payments = payment.NewService(payment.ServiceDeps{
		Repo:       paymentPostgres.NewPaymentRepository(handles.Gorm),
		Webhooks:   paymentPostgres.NewWebhookEventRepository(handles.Gorm),
		Resolver:   payment.NewResolver(inventorySvc, app.Catalog, prescriptionSvc, app.Consultations, fallbackPrice),
		Gateway:    gateway,
		Dispatcher: payment.NewDispatcher(inventorySvc, prescriptionSvc, app.Consultations, lg),
		Verifier:   payment.NewVerifier(cfg.Payment.WebhookSecret),
		Locker:     locker,
		Events:     app.Events,
		Metrics:    app.PaymentMetrics,
		Logger:     lg,
		Config: payment.Config{
			Currency:             cfg.Payment.Currency,
			CallbackURL:          cfg.Payment.CallbackURL,
			DefaultCustomerEmail: cfg.Payment.DefaultCustomerEmail,
		},
	})

	app.Tokens = auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	app.Auth = auth.NewService(authPostgres.NewRepository(handles.Gorm), app.Tokens, cfg.Security.AccessTokenDuration, lg)

	registerEventHandlers(app.Events, lg)

	return app, nil
}

func (a *application) reconciler() *reconcile.Reconciler {
	rc := a.Config.Reconcile
	return reconcile.New(a.Payments, reconcile.Config{
		Interval:    rc.Interval,
		StaleAfter:  rc.StaleAfter,
		MaxAttempts: rc.MaxAttempts,
		Workers:     rc.Workers,
		BatchSize:   rc.BatchSize,
	}, a.ReconcileMetrics, a.Logger)
}

// Close waits for in-flight event handlers, then releases connections.
func (a *application) Close() {
	a.Events.Wait()

	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	errs = append(errs, a.DB.Close())
	if err := errors.Join(errs...); err != nil {
		a.Logger.Error("failed to release resources", "error", err)
	}
}
