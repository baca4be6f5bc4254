package middleware

import (
	"context"
	"strings"

	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled bool
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{Enabled: true}
}

// routeOperations maps versionless API routes to the ledger operation they
// run, so HTTP samples line up with samples labelled by the services.
var routeOperations = map[string]string{
	"POST /payments":                   telemetry.OperationProcessPayment,
	"POST /payments/:id/apply":         telemetry.OperationProcessPayment,
	"POST /payments/:id/refund":        telemetry.OperationRefundPayment,
	"POST /rentals/:id/deductions":     telemetry.OperationDeductCharge,
	"POST /customers/:id/credit-sweep": telemetry.OperationSweepCredit,
}

// ProfilingWithConfig attaches Pyroscope labels (controller, route, method,
// tenant and, for money-moving routes, operation) to every sample taken
// while a versioned API request runs. Place it after the tenant middleware.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		resource := stripVersion(route)
		labels := telemetry.HTTPRequestLabels(controllerFromRoute(resource), route, c.Request.Method, GetTenantID(c))
		if op, ok := routeOperations[c.Request.Method+" "+resource]; ok {
			labels[telemetry.ProfilingLabelOperation] = op
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// stripVersion drops the "/api/<version>" prefix of a route
func stripVersion(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return route
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return ""
}

// controllerFromRoute returns the first segment of a versionless route,
// e.g. "/payments/:id/refund" -> "payments"
func controllerFromRoute(route string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(route, "/"), "/")
	if strings.HasPrefix(first, ":") {
		return ""
	}
	return first
}
