package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/CortekUK/drive-247-sub002/internal/application/billing"
	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/billing"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/cache"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/config"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/event"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/logger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/scheduler"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/handler"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/middleware"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/CortekUK/drive-247-sub002/docs"
)

//	@title			Drive247 Ledger API
//	@version		1.0
//	@description	Multi-tenant rental ledger: charges, payments, FIFO allocation, refunds and credit.

//	@contact.name	Drive247 Engineering
//	@contact.url	https://github.com/CortekUK/drive-247-sub002

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantID
//	@in							header
//	@name						X-Tenant-ID
//	@description				Tenant UUID scoping every ledger request

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()
	tel := setupTelemetry(ctx, cfg, log)
	log = tel.logger
	defer tel.shutdown(log)

	log.Info("Starting ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	dbOpts := []persistence.Option{
		persistence.WithLogger(logger.NewGormLogger(log, logger.GormConfig{
			Level:         cfg.Database.LogLevel,
			SlowThreshold: cfg.Database.SlowThreshold,
			MaxSQLLength:  2048,
		})),
	}
	dbInst, err := telemetry.NewDBInstrumentation(telemetry.DBConfig{
		TraceEnabled:   cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:     cfg.Telemetry.DBLogFullSQL,
		MetricsEnabled: tel.meters.IsEnabled(),
	}, tel.meters.Meter("drive247/db"), log)
	if err != nil {
		log.Fatal("Failed to create database instrumentation", zap.Error(err))
	}
	dbOpts = append(dbOpts, persistence.WithPlugin(dbInst))

	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbInst.StartPoolStats(ctx)
	defer dbInst.Stop()
	log.Info("Database connected successfully")

	caches, err := cache.NewFactory(ctx, cfg.Redis, cache.WithLogger(log), cache.WithInMemoryFallback(!cfg.IsProduction()))
	if err != nil {
		log.Fatal("Failed to initialize caches", zap.Error(err))
	}
	defer func() {
		if err := caches.Close(); err != nil {
			log.Error("Error closing caches", zap.Error(err))
		}
	}()
	log.Info("Caches initialized", zap.Bool("redis", caches.UsesRedis()))

	snapshots := persistence.NewGormLedgerSnapshotRepository(db.DB)
	ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:    tel.meters.Meter("drive247/ledger"),
		Logger:   log,
		Provider: snapshots,
	})
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	if tel.meters.IsEnabled() {
		ledgerMetrics.StartPeriodicCollection(ctx)
	}
	defer ledgerMetrics.Stop()

	priority, err := ledger.ParseCategories(cfg.Ledger.DefaultPriority)
	if err != nil {
		log.Fatal("Invalid ledger.default_priority", zap.Error(err))
	}
	var allocatorOpts []ledger.AllocatorOption
	if len(priority) > 0 {
		allocatorOpts = append(allocatorOpts, ledger.WithDefaultPriority(priority))
	}
	allocator := ledger.NewAllocator(allocatorOpts...)
	registry := ledger.DefaultCategoryRegistry()

	repos := persistence.NewLedgerRepositories(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	eventBus := event.NewInMemoryEventBus(log, event.WithAsyncDispatch())

	var refundGateway appledger.RefundGateway
	if cfg.Stripe.Enabled() {
		gw, err := billing.NewStripeRefundGateway(billing.NewStripeConfig(cfg.Stripe, cfg.Ledger.Currency), log)
		if err != nil {
			log.Fatal("Invalid Stripe configuration", zap.Error(err))
		}
		refundGateway = gw
	} else {
		log.Warn("Stripe is not configured; refunds are recorded without a gateway call")
	}

	resolver := appledger.NewChargeResolver(repos.Entries, repos.Invoices, registry, log)
	processor := appledger.NewPaymentProcessor(repos, resolver, appledger.PaymentProcessorConfig{
		Logger:          log,
		Metrics:         ledgerMetrics,
		Publisher:       eventBus,
		Allocator:       allocator,
		RaceWaitDelay:   cfg.Ledger.RaceWaitDelay,
		RaceMaxAttempts: cfg.Ledger.RaceMaxAttempts,
		RaceTimeout:     cfg.Ledger.RaceTimeout,
		StaleClaimAfter: cfg.Ledger.StaleClaimAfter,
	})
	refunds := appledger.NewRefundProcessor(repos, txScope, appledger.RefundProcessorConfig{
		Logger:    log,
		Metrics:   ledgerMetrics,
		Publisher: eventBus,
		Registry:  registry,
		Gateway:   refundGateway,
		Cache:     caches.RefundedCache(),
		CacheTTL:  cfg.Ledger.RefundCacheTTL,
		Currency:  cfg.Ledger.Currency,
	})
	ledgerService := appledger.NewLedgerService(repos, processor, refunds, eventBus, log)
	chargeService := appledger.NewChargeService(repos, txScope, eventBus, log)
	creditAllocator := appledger.NewCreditAllocator(repos, txScope, allocator, log).WithMetrics(ledgerMetrics)
	checker := appledger.NewConsistencyChecker(repos, log)

	if cfg.Ledger.CreditSweepOnCharge {
		sweep := event.NewIdempotentHandler(
			appledger.NewCreditSweepHandler(creditAllocator, log),
			caches.IdempotencyStore(),
			log,
		)
		eventBus.Subscribe(sweep, sweep.EventTypes()...)
		log.Info("Event handlers registered", zap.Strings("credit_sweep_events", sweep.EventTypes()))
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Reconcile.Enabled {
		stop, err := startReconciliation(ctx, cfg.Reconcile, appledger.NewReconciler(appledger.ReconcilerConfig{
			Customers: snapshots,
			Checker:   checker,
			Credit:    creditAllocator,
			Repair:    cfg.Reconcile.Repair,
			Logger:    log,
		}), snapshots, log)
		if err != nil {
			log.Fatal("Failed to start reconciliation", zap.Error(err))
		}
		defer stop()
	}

	webhooks := billingapp.NewStripeWebhookService(billingapp.StripeWebhookServiceConfig{
		WebhookSecret:    cfg.Stripe.WebhookSecret,
		Ledger:           ledgerService,
		IdempotencyStore: caches.IdempotencyStore(),
		Metrics:          ledgerMetrics,
		Logger:           log,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = tel.profiler.IsEnabled()

	engine := router.NewEngine(router.EngineConfig{
		Logger:         log,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		MaxImportSize:  cfg.HTTP.MaxImportSize,
		CORS:           corsCfg,
		Swagger: middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		},
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tel.tracer.IsEnabled(),
		},
		Profiling:     profilingCfg,
		MeterProvider: tel.meters,
	}, router.Handlers{
		Payments:  handler.NewPaymentHandler(ledgerService),
		Charges:   handler.NewChargeHandler(chargeService),
		Rentals:   handler.NewRentalHandler(ledgerService),
		Customers: handler.NewCustomerHandler(ledgerService, creditAllocator, checker),
		Webhooks:  handler.NewStripeWebhookHandler(webhooks),
		System: handler.NewSystemHandler(
			handler.WithVersion(cfg.App.Name, version),
			handler.WithReadinessCheck("database", func(context.Context) error { return db.Ping() }),
			handler.WithReadinessCheck("cache", caches.Ping),
		),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

// startReconciliation runs the nightly per-tenant reconciliation and returns
// its shutdown function
func startReconciliation(ctx context.Context, cfg config.ReconcileConfig, executor scheduler.JobExecutor, tenants scheduler.TenantProvider, log *zap.Logger) (func(), error) {
	hour, minute, err := scheduler.ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	kinds := []scheduler.JobKind{scheduler.JobKindReconcile}
	if cfg.SweepCredit {
		kinds = append(kinds, scheduler.JobKindCreditSweep)
	}
	jobs := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.Workers,
		JobTimeout:        cfg.JobTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay,
		Kinds:             kinds,
	}, executor, log)
	if err := jobs.Start(ctx); err != nil {
		return nil, err
	}

	triggerCfg := scheduler.DefaultCronTriggerConfig()
	triggerCfg.Hour, triggerCfg.Minute = hour, minute
	trigger := scheduler.NewCronTrigger(triggerCfg, jobs, tenants, log)
	if err := trigger.Start(ctx); err != nil {
		_ = jobs.Stop(context.Background())
		return nil, err
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := trigger.Stop(stopCtx); err != nil {
			log.Error("Error stopping reconciliation trigger", zap.Error(err))
		}
		if err := jobs.Stop(stopCtx); err != nil {
			log.Error("Error stopping reconciliation scheduler", zap.Error(err))
		}
	}, nil
}
