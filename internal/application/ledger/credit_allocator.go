package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreditSweepPayment is what a sweep did with one payment's credit
type CreditSweepPayment struct {
	PaymentID uuid.UUID
	Applied   decimal.Decimal
	Remaining decimal.Decimal
	Status    ledger.PaymentStatus
	Err       error
}

// CreditSweepResult is the outcome of a credit sweep
type CreditSweepResult struct {
	CustomerID uuid.UUID
	Allocated  decimal.Decimal
	Payments   []CreditSweepPayment
}

// CreditAllocator applies customers' unapplied payment credit to charges
// booked after the payment was allocated
type CreditAllocator struct {
	repos     Repositories
	scope     TransactionScope
	resolver  *ChargeResolver
	allocator *ledger.Allocator
	metrics   Metrics
	logger    *zap.Logger
}

// NewCreditAllocator creates a CreditAllocator
func NewCreditAllocator(repos Repositories, scope TransactionScope, allocator *ledger.Allocator, logger *zap.Logger) *CreditAllocator {
	if allocator == nil {
		allocator = ledger.NewAllocator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditAllocator{
		repos:     repos,
		scope:     scope,
		resolver:  NewChargeResolver(repos.Entries, repos.Invoices, nil, logger),
		allocator: allocator,
		metrics:   NopMetrics(),
		logger:    logger,
	}
}

// WithMetrics sets the metrics sink
func (a *CreditAllocator) WithMetrics(metrics Metrics) *CreditAllocator {
	if metrics != nil {
		a.metrics = metrics
	}
	return a
}

// SweepCredit allocates every payment of a customer still holding credit,
// oldest first. The default priority is walked before any other category
// with an outstanding charge. Each payment is swept in its own
// transaction; a payment that fails is rolled back and reported without
// stopping the sweep.
func (a *CreditAllocator) SweepCredit(ctx context.Context, tenantID, customerID uuid.UUID) (*CreditSweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "sweep_credit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCustomerID, customerID.String(),
	)

	log := a.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", customerID.String()),
	)

	payments, err := a.repos.Payments.FindWithCredit(ctx, tenantID, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to find payments with credit: %w", err)
	}

	result := &CreditSweepResult{
		CustomerID: customerID,
		Allocated:  decimal.Zero,
		Payments:   make([]CreditSweepPayment, 0, len(payments)),
	}
	for _, candidate := range payments {
		swept := a.sweepPayment(ctx, candidate.TenantID, candidate.ID)
		if swept.Err != nil {
			log.Warn("credit sweep skipped payment",
				zap.String("payment_id", swept.PaymentID.String()),
				zap.Error(swept.Err),
			)
		}
		result.Allocated = result.Allocated.Add(swept.Applied)
		result.Payments = append(result.Payments, swept)
	}

	if result.Allocated.IsPositive() {
		a.metrics.RecordCreditSweep(ctx, tenantID, result.Allocated, len(result.Payments))
		log.Info("credit swept",
			zap.String("allocated", result.Allocated.StringFixed(2)),
			zap.Int("payments", len(result.Payments)),
		)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, result.Allocated.StringFixed(2))
	telemetry.SetOK(span)
	return result, nil
}

func (a *CreditAllocator) sweepPayment(ctx context.Context, tenantID, paymentID uuid.UUID) CreditSweepPayment {
	out := CreditSweepPayment{PaymentID: paymentID, Applied: decimal.Zero}
	err := a.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Re-read inside the transaction; the list may be stale
		payment, err := repos.PaymentRepo().FindByID(ctx, tenantID, paymentID)
		if err != nil {
			return err
		}
		out.Remaining = payment.RemainingAmount
		out.Status = payment.Status
		if !payment.Status.HoldsCredit() || !payment.RemainingAmount.IsPositive() {
			return nil
		}

		resolver := a.resolver.withEntries(repos.EntryRepo())
		lookup := resolver.Lookup(tenantID, payment.CustomerID, nil, false)
		applier := newChargeApplier(tenantID, payment.ID, repos.EntryRepo(), repos.ApplicationRepo(), repos.PnLRepo(), a.logger)
		priority, err := a.sweepPriority(ctx, repos.EntryRepo(), tenantID, payment.CustomerID)
		if err != nil {
			return err
		}
		allocation, err := a.allocator.Allocate(ctx, payment.RemainingAmount, priority, lookup, applier)
		if err != nil {
			return err
		}
		if allocation.HasFailures() {
			return fmt.Errorf("%w: %d step(s) failed", ledger.ErrPartialPostingFailure, len(allocation.Failures))
		}
		if !allocation.TotalApplied.IsPositive() {
			return nil
		}
		if err := payment.ConsumeCredit(allocation.TotalApplied); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		out.Applied = allocation.TotalApplied
		out.Remaining = payment.RemainingAmount
		out.Status = payment.Status
		return nil
	})
	if err != nil {
		out.Applied = decimal.Zero
		out.Err = err
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			out.Err = fmt.Errorf("payment changed during sweep: %w", err)
		}
	}
	return out
}

// sweepPriority is the default priority followed by every other category
// the customer has an outstanding charge in, in FIFO order of those charges
func (a *CreditAllocator) sweepPriority(ctx context.Context, entries ledger.LedgerEntryRepository, tenantID, customerID uuid.UUID) ([]ledger.Category, error) {
	priority := a.allocator.DefaultPriority()
	outstanding, err := entries.FindOutstandingCharges(ctx, tenantID, ledger.ChargeFilter{CustomerID: &customerID})
	if err != nil {
		return nil, fmt.Errorf("failed to find outstanding charges: %w", err)
	}
	for _, charge := range outstanding {
		if !slices.Contains(priority, charge.Category) {
			priority = append(priority, charge.Category)
		}
	}
	return priority, nil
}
