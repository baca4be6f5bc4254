package telemetry

import (
	"context"
	"maps"
	"runtime/pprof"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelTenantID   = "tenant_id"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelRegion     = "region"
)

// Operation names used as profiling labels
const (
	OperationProcessPayment = "process_payment"
	OperationRefundPayment  = "refund_payment"
	OperationDeductCharge   = "deduct_from_charge"
	OperationSweepCredit    = "sweep_credit"
	OperationStripeWebhook  = "stripe_webhook"
)

// MaxLabelValueLength truncates label values
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels. Per-payment ids
// would create one series per request.
var HighCardinalityLabels = map[string]bool{
	"request_id":  true,
	"trace_id":    true,
	"span_id":     true,
	"payment_id":  true,
	"charge_id":   true,
	"rental_id":   true,
	"customer_id": true,
}

// WithProfilingLabels runs fn with Pyroscope labels attached to its samples.
// labels is copied, sanitized and sorted first.
//
//	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationRefundPayment, nil),
//	    func(c context.Context) { result, err = p.refund(c, req) })
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// WithPprofLabels is WithProfilingLabels on the runtime/pprof API, for
// binaries that only expose net/http/pprof
func WithPprofLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pprof.Do(ctx, pprof.Labels(pairs...), fn)
}

// ProfilingScope accumulates labels
type ProfilingScope struct {
	labels map[string]string
}

// NewProfilingScope starts a scope from labels
func NewProfilingScope(labels map[string]string) *ProfilingScope {
	s := &ProfilingScope{labels: make(map[string]string, len(labels))}
	maps.Copy(s.labels, labels)
	return s
}

// WithLabel sets one label
func (s *ProfilingScope) WithLabel(key, value string) *ProfilingScope {
	s.labels[key] = value
	return s
}

// WithTenantID sets the tenant label
func (s *ProfilingScope) WithTenantID(tenantID string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelTenantID, tenantID)
}

// WithOperation sets the operation label
func (s *ProfilingScope) WithOperation(operation string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelOperation, operation)
}

// Labels returns a copy of the labels
func (s *ProfilingScope) Labels() map[string]string {
	out := make(map[string]string, len(s.labels))
	maps.Copy(out, s.labels)
	return out
}

// Run runs fn under the labels
func (s *ProfilingScope) Run(ctx context.Context, fn func(context.Context)) {
	WithProfilingLabels(ctx, s.labels, fn)
}

// sanitizeLabels returns sorted key/value pairs with empty and
// high-cardinality entries removed, keys in snake_case and values truncated
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		clean := sanitizeLabelKey(key)
		if clean == "" || HighCardinalityLabels[clean] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, clean, value)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// HTTPRequestLabels labels a request by handler, route, method and tenant
func HTTPRequestLabels(controller, route, method, tenantID string) map[string]string {
	labels := make(map[string]string, 4)
	if controller != "" {
		labels[ProfilingLabelController] = controller
	}
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	if tenantID != "" {
		labels[ProfilingLabelTenantID] = tenantID
	}
	return labels
}

// OperationLabels labels a named operation
func OperationLabels(operation string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+1)
	maps.Copy(labels, extra)
	labels[ProfilingLabelOperation] = operation
	return labels
}

// RegionLabels labels a code region such as "race_wait" or "stripe_api"
func RegionLabels(region string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+1)
	maps.Copy(labels, extra)
	labels[ProfilingLabelRegion] = region
	return labels
}
