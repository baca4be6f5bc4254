package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults for the loser wait-and-reread loop
const (
	DefaultRaceWaitDelay   = 3 * time.Second
	DefaultRaceMaxAttempts = 5
	DefaultRaceTimeout     = 20 * time.Second
	DefaultStaleClaimAfter = 5 * time.Minute
)

// maxSaveAttempts bounds reload-and-retry on payment version conflicts
const maxSaveAttempts = 3

// PaymentProcessorConfig configures a PaymentProcessor
type PaymentProcessorConfig struct {
	Logger    *zap.Logger
	Metrics   Metrics
	Publisher shared.EventPublisher
	Allocator *ledger.Allocator

	// RaceWaitDelay is the pause between re-reads of a payment that
	// another caller is allocating
	RaceWaitDelay time.Duration
	// RaceMaxAttempts caps the number of re-reads
	RaceMaxAttempts int
	// RaceTimeout caps the total time spent waiting
	RaceTimeout time.Duration
	// StaleClaimAfter is how old an unfinished gate must be before a
	// waiting caller may take it over. Zero disables takeover.
	StaleClaimAfter time.Duration
}

func (c *PaymentProcessorConfig) applyDefaults() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics()
	}
	if c.Allocator == nil {
		c.Allocator = ledger.NewAllocator()
	}
	if c.RaceWaitDelay <= 0 {
		c.RaceWaitDelay = DefaultRaceWaitDelay
	}
	if c.RaceMaxAttempts <= 0 {
		c.RaceMaxAttempts = DefaultRaceMaxAttempts
	}
	if c.RaceTimeout <= 0 {
		c.RaceTimeout = DefaultRaceTimeout
	}
}

// ProcessResult is the outcome of allocating one payment. Allocated is the
// payment's lifetime allocation, not only this call's share.
type ProcessResult struct {
	PaymentID    uuid.UUID
	Allocated    decimal.Decimal
	Remaining    decimal.Decimal
	Status       ledger.PaymentStatus
	Applications []ledger.Application
	Failures     []ledger.AllocationFailure
	// Concurrent is set when another caller performed the allocation and
	// this result was read back from storage
	Concurrent bool
}

// HasFailures reports whether any per-charge posting failed
func (r *ProcessResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// PaymentProcessor allocates payments to outstanding charges. Concurrent
// calls for one payment are serialized through the payment's ledger row:
// the caller that inserts it allocates, every other caller waits for the
// payment to leave Pending and returns the stored outcome.
type PaymentProcessor struct {
	repos    Repositories
	resolver *ChargeResolver
	cfg      PaymentProcessorConfig
	now      func() time.Time
}

// NewPaymentProcessor creates a PaymentProcessor
func NewPaymentProcessor(repos Repositories, resolver *ChargeResolver, cfg PaymentProcessorConfig) *PaymentProcessor {
	cfg.applyDefaults()
	if resolver == nil {
		resolver = NewChargeResolver(repos.Entries, repos.Invoices, nil, cfg.Logger)
	}
	return &PaymentProcessor{
		repos:    repos,
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Process allocates a payment. targets overrides the categories stored on
// the payment; when both are empty the default priority applies.
func (p *PaymentProcessor) Process(ctx context.Context, tenantID, paymentID uuid.UUID, targets []ledger.Category) (*ProcessResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "process_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	started := p.now()
	var result *ProcessResult
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationProcessPayment, nil), func(c context.Context) {
		result, opErr = p.process(c, tenantID, paymentID, targets)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, result.Allocated.StringFixed(2),
		telemetry.SpanAttrStatus, result.Status.String(),
	)
	if !result.Concurrent {
		p.cfg.Metrics.RecordAllocation(ctx, tenantID, result.Status.String(), result.Allocated, p.now().Sub(started))
	}
	if result.HasFailures() {
		p.cfg.Metrics.RecordPostingFailures(ctx, tenantID, len(result.Failures))
		telemetry.AddEvent(span, "partial_posting_failure", "failures", len(result.Failures))
	} else {
		telemetry.SetOK(span)
	}
	return result, nil
}

func (p *PaymentProcessor) process(ctx context.Context, tenantID, paymentID uuid.UUID, targets []ledger.Category) (*ProcessResult, error) {
	log := p.cfg.Logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", paymentID.String()),
	)

	payment, err := p.repos.Payments.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}

	gate := ledger.NewPaymentEntry(payment)
	err = p.repos.Entries.Create(ctx, gate)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrDuplicateEntry):
		log.Info("payment is being allocated by another caller, waiting")
		stored, reclaimed, waitErr := p.awaitAllocation(ctx, log, payment)
		if waitErr != nil {
			return nil, waitErr
		}
		if !reclaimed {
			return stored, nil
		}
		log.Warn("took over stale payment allocation")
		if payment, err = p.repos.Payments.FindByID(ctx, tenantID, paymentID); err != nil {
			return nil, err
		}
	default:
		log.Error("failed to insert payment ledger entry", zap.Error(err))
		return nil, fmt.Errorf("failed to insert payment ledger entry: %w", err)
	}

	return p.allocate(ctx, log, payment, targets)
}

// awaitAllocation re-reads the payment until the allocating caller has
// finished. If the gate owner looks dead it tries to take the gate over and
// reports reclaimed=true.
func (p *PaymentProcessor) awaitAllocation(ctx context.Context, log *zap.Logger, payment *ledger.Payment) (*ProcessResult, bool, error) {
	deadline := p.now().Add(p.cfg.RaceTimeout)
	for attempt := 0; ; attempt++ {
		current, err := p.repos.Payments.FindByID(ctx, payment.TenantID, payment.ID)
		if err != nil {
			return nil, false, err
		}
		if current.Status.IsAllocated() {
			p.cfg.Metrics.RecordRace(ctx, payment.TenantID, RaceOutcomeResolved)
			stored, err := p.storedResult(ctx, current)
			return stored, false, err
		}
		if attempt+1 >= p.cfg.RaceMaxAttempts || p.now().Add(p.cfg.RaceWaitDelay).After(deadline) {
			break
		}
		log.Debug("payment still pending, re-reading", zap.Int("attempt", attempt+1))
		if err := sleep(ctx, p.cfg.RaceWaitDelay); err != nil {
			return nil, false, err
		}
	}

	if p.cfg.StaleClaimAfter > 0 {
		gate, err := p.repos.Entries.FindPaymentEntry(ctx, payment.TenantID, payment.ID)
		if err != nil {
			return nil, false, err
		}
		if gate != nil {
			ok, err := p.repos.Entries.ReclaimPaymentEntry(ctx, payment.TenantID, gate.ID, p.now().Add(-p.cfg.StaleClaimAfter))
			if err != nil {
				return nil, false, err
			}
			if ok {
				p.cfg.Metrics.RecordRace(ctx, payment.TenantID, RaceOutcomeReclaimed)
				return nil, true, nil
			}
		}
	}

	p.cfg.Metrics.RecordRace(ctx, payment.TenantID, RaceOutcomeTimeout)
	log.Warn("gave up waiting for concurrent allocation")
	return nil, false, ledger.ErrAllocationTimeout.WithDetail(payment.ID.String())
}

func (p *PaymentProcessor) storedResult(ctx context.Context, payment *ledger.Payment) (*ProcessResult, error) {
	allocated, err := p.repos.Applications.SumByPayment(ctx, payment.TenantID, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum applications: %w", err)
	}
	return &ProcessResult{
		PaymentID:    payment.ID,
		Allocated:    allocated,
		Remaining:    payment.RemainingAmount,
		Status:       payment.Status,
		Applications: []ledger.Application{},
		Failures:     []ledger.AllocationFailure{},
		Concurrent:   true,
	}, nil
}

func (p *PaymentProcessor) allocate(ctx context.Context, log *zap.Logger, payment *ledger.Payment, override []ledger.Category) (*ProcessResult, error) {
	already, err := p.repos.Applications.SumByPayment(ctx, payment.TenantID, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum applications: %w", err)
	}

	allocation := &ledger.AllocationResult{
		Applications: []ledger.Application{},
		TotalApplied: decimal.Zero,
		Failures:     []ledger.AllocationFailure{},
	}
	toAllocate := payment.CreditFor(already)
	if toAllocate.IsPositive() {
		targets := payment.AllocationTargets(override)
		lookup := p.resolver.Lookup(payment.TenantID, payment.CustomerID, payment.RentalID, len(targets) > 0)
		applier := newChargeApplier(payment.TenantID, payment.ID, p.repos.Entries, p.repos.Applications, p.repos.PnL, log)
		allocation, err = p.cfg.Allocator.Allocate(ctx, toAllocate, p.cfg.Allocator.PriorityFor(targets), lookup, applier)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info("payment already fully allocated", zap.String("allocated", already.StringFixed(2)))
	}

	for _, failure := range allocation.Failures {
		log.Warn("allocation step failed",
			zap.String("charge_id", failure.ChargeID.String()),
			zap.String("category", failure.Category.String()),
			zap.String("amount", failure.Amount.StringFixed(2)),
			zap.Bool("balance_moved", failure.Applied),
			zap.Error(failure.Err),
		)
	}

	total := already.Add(allocation.TotalApplied)
	payment, err = p.saveAllocation(ctx, payment, total)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, log, payment)

	log.Info("payment allocated",
		zap.String("allocated", total.StringFixed(2)),
		zap.String("remaining", payment.RemainingAmount.StringFixed(2)),
		zap.String("status", payment.Status.String()),
		zap.Int("applications", len(allocation.Applications)),
	)
	return &ProcessResult{
		PaymentID:    payment.ID,
		Allocated:    total,
		Remaining:    payment.RemainingAmount,
		Status:       payment.Status,
		Applications: allocation.Applications,
		Failures:     allocation.Failures,
	}, nil
}

// saveAllocation stores the allocation outcome, reloading the payment when
// a concurrent refund bumped its version
func (p *PaymentProcessor) saveAllocation(ctx context.Context, payment *ledger.Payment, total decimal.Decimal) (*ledger.Payment, error) {
	for attempt := 1; ; attempt++ {
		if err := payment.CompleteAllocation(total); err != nil {
			return nil, err
		}
		err := p.repos.Payments.SaveWithLock(ctx, payment)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= maxSaveAttempts {
			return nil, fmt.Errorf("failed to save payment: %w", err)
		}
		if payment, err = p.repos.Payments.FindByID(ctx, payment.TenantID, payment.ID); err != nil {
			return nil, err
		}
	}
}

func (p *PaymentProcessor) publish(ctx context.Context, log *zap.Logger, payment *ledger.Payment) {
	events := payment.PullEvents()
	if p.cfg.Publisher == nil || len(events) == 0 {
		return
	}
	if err := p.cfg.Publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish payment events", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
