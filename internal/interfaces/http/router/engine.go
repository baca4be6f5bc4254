package router

import (
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/logger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/handler"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	Payments  *handler.PaymentHandler
	Charges   *handler.ChargeHandler
	Rentals   *handler.RentalHandler
	Customers *handler.CustomerHandler
	Webhooks  *handler.StripeWebhookHandler
	System    *handler.SystemHandler
}

// EngineConfig holds the middleware settings of the engine
type EngineConfig struct {
	Logger         *zap.Logger
	APIVersion     string
	TrustedProxies []string
	MaxBodySize    int64
	MaxImportSize  int64
	CORS           middleware.CORSConfig
	Swagger        middleware.SwaggerConfig
	Tracing        middleware.TracingConfig
	Profiling      middleware.ProfilingConfig
	MeterProvider  *telemetry.MeterProvider
}

// NewEngine builds the gin engine with the full middleware stack and every
// ledger route.
//
// Global middleware, in order: request id, panic recovery, access log,
// tracing, span error marking, HTTP metrics, security headers, CORS and body
// limit. Versioned API routes additionally require a tenant and carry it into
// spans and profiles. Health probes, Swagger and the Stripe webhook carry no
// tenant.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: cfg.MeterProvider,
		Enabled:       cfg.MeterProvider != nil,
		Logger:        log,
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	bodyLimit := middleware.BodyLimitConfig{MaxBytes: cfg.MaxBodySize}
	if cfg.MaxImportSize > 0 {
		bodyLimit.PerRoute = map[string]int64{"/api/" + cfg.APIVersion + "/charges/import": cfg.MaxImportSize}
	}
	engine.Use(middleware.BodyLimitWithConfig(bodyLimit))
	engine.NoRoute(middleware.NoRoute())

	engine.GET("/health", h.System.Health)
	engine.GET("/healthz", h.System.Health)
	engine.GET("/ready", h.System.Ready)
	engine.GET("/swagger/*any", middleware.SwaggerProtection(cfg.Swagger), ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Called by Stripe, authenticated by signature
	engine.POST("/webhooks/stripe", h.Webhooks.HandleStripeWebhook)

	system := NewGroup("system", "/system").GET("/info", h.System.GetSystemInfo)
	routes := NewAPI(cfg.APIVersion).Add(system).Mount(engine)

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.Logger = log
	api := NewAPI(cfg.APIVersion,
		middleware.TenantMiddlewareWithConfig(tenantCfg),
		middleware.TracingAttributeInjector(),
		middleware.ProfilingWithConfig(cfg.Profiling),
	)
	routes = append(routes, api.Add(ledgerGroups(h)...).Mount(engine)...)

	for _, r := range routes {
		log.Debug("Route mounted",
			zap.String("group", r.Group),
			zap.String("method", r.Method),
			zap.String("path", r.Path),
		)
	}

	return engine
}

func ledgerGroups(h Handlers) []*Group {
	payments := NewGroup("payments", "/payments")
	payments.POST("", h.Payments.Record).
		GET("/:id", h.Payments.Get).
		POST("/:id/apply", h.Payments.Apply).
		POST("/:id/refund", h.Payments.Refund)

	charges := NewGroup("charges", "/charges")
	charges.POST("", h.Charges.Create).
		POST("/import", h.Charges.Import).
		POST("/:id/reverse", h.Charges.Reverse)

	rentals := NewGroup("rentals", "/rentals")
	rentals.POST("/:id/deductions", h.Rentals.Deduct).
		GET("/:id/ledger", h.Rentals.Ledger)

	customers := NewGroup("customers", "/customers")
	customers.GET("/:id/balance", h.Customers.Balance).
		POST("/:id/credit-sweep", h.Customers.SweepCredit).
		GET("/:id/consistency", h.Customers.Consistency)

	return []*Group{payments, charges, rentals, customers}
}
