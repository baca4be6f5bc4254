package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerSnapshot is a tenant's point-in-time ledger position
type LedgerSnapshot struct {
	OutstandingCharges decimal.Decimal
	OpenCharges        int64
	UnappliedCredit    decimal.Decimal
	PendingPayments    int64
}

// LedgerSnapshotProvider reads ledger positions for the periodic gauges
type LedgerSnapshotProvider interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
	Snapshot(ctx context.Context, tenantID uuid.UUID) (LedgerSnapshot, error)
}

// LedgerMetricsConfig configures LedgerMetrics
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	Provider        LedgerSnapshotProvider // optional, enables the gauges
	CollectInterval time.Duration          // default 5m
}

// LedgerMetrics records allocation, refund and credit activity
type LedgerMetrics struct {
	logger *zap.Logger

	allocations       *Counter
	allocatedAmount   *FloatCounter
	allocationLatency *Histogram
	races             *Counter
	postingFailures   *Counter
	refunds           *Counter
	refundedAmount    *FloatCounter
	refundShares      *Histogram
	creditSwept       *FloatCounter
	creditSweeps      *Counter
	webhooks          *Counter

	outstanding     *FloatGauge
	openCharges     *Gauge
	credit          *FloatGauge
	pendingPayments *Gauge

	provider    LedgerSnapshotProvider
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
	wg          sync.WaitGroup
}

// NewLedgerMetrics creates the ledger instruments on cfg.Meter
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CollectInterval <= 0 {
		cfg.CollectInterval = 5 * time.Minute
	}
	m := &LedgerMetrics{
		logger:   cfg.Logger,
		provider: cfg.Provider,
		interval: cfg.CollectInterval,
		stopCh:   make(chan struct{}),
	}
	meter := cfg.Meter

	var err error
	counters := []struct {
		dst                     **Counter
		name, description, unit string
	}{
		{&m.allocations, "ledger_allocation_total", "Completed payment allocations by resulting status", "{allocation}"},
		{&m.races, "ledger_allocation_race_total", "Callers that lost the payment gate, by outcome", "{race}"},
		{&m.postingFailures, "ledger_posting_failure_total", "Application or revenue postings that failed mid-allocation", "{posting}"},
		{&m.refunds, "ledger_refund_total", "Refunds posted", "{refund}"},
		{&m.creditSweeps, "ledger_credit_sweep_total", "Credit sweeps that applied money", "{sweep}"},
		{&m.webhooks, "ledger_webhook_total", "Payment provider webhooks by event type and outcome", "{event}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.description, c.unit); err != nil {
			return nil, err
		}
	}

	money := []struct {
		dst               **FloatCounter
		name, description string
	}{
		{&m.allocatedAmount, "ledger_allocated_amount_total", "Money applied to charges by allocation"},
		{&m.refundedAmount, "ledger_refunded_amount_total", "Money refunded"},
		{&m.creditSwept, "ledger_credit_swept_amount_total", "Credit applied to later charges"},
	}
	for _, c := range money {
		if *c.dst, err = NewFloatCounter(meter, c.name, c.description, "{currency}"); err != nil {
			return nil, err
		}
	}

	if m.allocationLatency, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_allocation_duration_seconds",
		Description: "Time to allocate a payment, including any race wait",
		Unit:        "s",
		Boundaries:  AllocationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.refundShares, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_refund_shares",
		Description: "Categories a refund was split across",
		Unit:        "{category}",
		Boundaries:  []float64{1, 2, 3, 4, 6, 8},
	}); err != nil {
		return nil, err
	}

	if m.outstanding, err = NewFloatGauge(meter, "ledger_outstanding_charges", "Unpaid charge balance", "{currency}"); err != nil {
		return nil, err
	}
	if m.openCharges, err = NewGauge(meter, "ledger_open_charges", "Charges with a remaining balance", "{charge}"); err != nil {
		return nil, err
	}
	if m.credit, err = NewFloatGauge(meter, "ledger_unapplied_credit", "Payment money not yet applied to charges", "{currency}"); err != nil {
		return nil, err
	}
	if m.pendingPayments, err = NewGauge(meter, "ledger_pending_payments", "Payments whose allocation has not completed", "{payment}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAllocation records a completed allocation
func (m *LedgerMetrics) RecordAllocation(ctx context.Context, tenantID uuid.UUID, status string, allocated decimal.Decimal, duration time.Duration) {
	tenant := AttrTenantID.String(tenantID.String())
	m.allocations.Inc(ctx, tenant, AttrStatus.String(status))
	m.allocatedAmount.Add(ctx, allocated.InexactFloat64(), tenant)
	m.allocationLatency.RecordDuration(ctx, duration, tenant)
}

// RecordRace records how a caller that lost the payment gate finished
func (m *LedgerMetrics) RecordRace(ctx context.Context, tenantID uuid.UUID, outcome string) {
	m.races.Inc(ctx, AttrTenantID.String(tenantID.String()), AttrOutcome.String(outcome))
}

// RecordPostingFailures records postings that failed during allocation
func (m *LedgerMetrics) RecordPostingFailures(ctx context.Context, tenantID uuid.UUID, count int) {
	if count <= 0 {
		return
	}
	m.postingFailures.Add(ctx, int64(count), AttrTenantID.String(tenantID.String()))
}

// RecordRefund records a posted refund
func (m *LedgerMetrics) RecordRefund(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, shares int) {
	tenant := AttrTenantID.String(tenantID.String())
	m.refunds.Inc(ctx, tenant)
	m.refundedAmount.Add(ctx, amount.InexactFloat64(), tenant)
	m.refundShares.Record(ctx, float64(shares), tenant)
}

// RecordCreditSweep records credit applied by a sweep
func (m *LedgerMetrics) RecordCreditSweep(ctx context.Context, tenantID uuid.UUID, allocated decimal.Decimal, payments int) {
	tenant := AttrTenantID.String(tenantID.String())
	m.creditSweeps.Inc(ctx, tenant)
	m.creditSwept.Add(ctx, allocated.InexactFloat64(), tenant)
}

// RecordWebhook records a handled provider webhook
func (m *LedgerMetrics) RecordWebhook(ctx context.Context, eventType, outcome string) {
	m.webhooks.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// StartPeriodicCollection samples every tenant's ledger position until
// Stop or ctx is done. It does nothing without a provider.
func (m *LedgerMetrics) StartPeriodicCollection(ctx context.Context) {
	if m.provider == nil {
		return
	}
	m.collectOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(m.interval)
			defer ticker.Stop()
			for {
				m.collect(ctx)
				select {
				case <-ticker.C:
				case <-m.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

func (m *LedgerMetrics) collect(ctx context.Context) {
	tenants, err := m.provider.ActiveTenantIDs(ctx)
	if err != nil {
		m.logger.Warn("Failed to list tenants for ledger metrics", zap.Error(err))
		return
	}
	for _, tenantID := range tenants {
		snap, err := m.provider.Snapshot(ctx, tenantID)
		if err != nil {
			m.logger.Warn("Failed to read ledger snapshot",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		tenant := AttrTenantID.String(tenantID.String())
		m.outstanding.Record(ctx, snap.OutstandingCharges.InexactFloat64(), tenant)
		m.openCharges.Record(ctx, snap.OpenCharges, tenant)
		m.credit.Record(ctx, snap.UnappliedCredit.InexactFloat64(), tenant)
		m.pendingPayments.Record(ctx, snap.PendingPayments, tenant)
	}
}

// Stop ends periodic collection. Safe to call more than once.
func (m *LedgerMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}
