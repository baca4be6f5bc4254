package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared/valueobject"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GatewayRefundRequest asks the payment provider to return money
type GatewayRefundRequest struct {
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
	Reason          string
	IdempotencyKey  string
	Metadata        map[string]string
}

// RefundGateway issues refunds with the payment provider and returns the
// provider's refund id
type RefundGateway interface {
	Refund(ctx context.Context, req GatewayRefundRequest) (string, error)
}

// RefundedCache holds the per-category refunded-so-far figures of a payment
type RefundedCache interface {
	Get(ctx context.Context, tenantID, paymentID uuid.UUID) (map[ledger.Category]decimal.Decimal, bool, error)
	Set(ctx context.Context, tenantID, paymentID uuid.UUID, totals map[ledger.Category]decimal.Decimal, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID, paymentID uuid.UUID) error
}

// RefundProcessorConfig configures a RefundProcessor
type RefundProcessorConfig struct {
	Logger    *zap.Logger
	Metrics   Metrics
	Publisher shared.EventPublisher
	Registry  *ledger.CategoryRegistry
	Gateway   RefundGateway // optional
	Cache     RefundedCache // optional
	CacheTTL  time.Duration
	Currency  string
}

// RefundRequest describes a refund against a payment
type RefundRequest struct {
	TenantID  uuid.UUID
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	// IdempotencyKey makes a retried refund return the first outcome
	// instead of refunding twice. Optional.
	IdempotencyKey string
}

// RefundResult is the outcome of a refund
type RefundResult struct {
	PaymentID      uuid.UUID
	Amount         decimal.Decimal
	StripeRefundID string
	LedgerEntryIDs []uuid.UUID
	Shares         []ledger.RefundShare
	Status         ledger.PaymentStatus
	RefundStatus   ledger.RefundStatus
	// Replayed is set when the refund had already been posted under the
	// same key and nothing new was written
	Replayed bool
}

// DeductRequest moves part of a rental's held deposit onto a charge
type DeductRequest struct {
	TenantID uuid.UUID
	RentalID uuid.UUID
	Category ledger.Category
	Amount   decimal.Decimal
}

// DeductResult is the outcome of a deposit deduction
type DeductResult struct {
	ChargeID     uuid.UUID
	EntryID      uuid.UUID
	NewRemaining decimal.Decimal
}

// RefundProcessor returns money against payments and applies held deposits
// to charges
type RefundProcessor struct {
	repos    Repositories
	scope    TransactionScope
	cfg      RefundProcessorConfig
	registry *ledger.CategoryRegistry
}

// NewRefundProcessor creates a RefundProcessor
func NewRefundProcessor(repos Repositories, scope TransactionScope, cfg RefundProcessorConfig) *RefundProcessor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics()
	}
	if cfg.Registry == nil {
		cfg.Registry = ledger.DefaultCategoryRegistry()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = string(valueobject.DefaultCurrency)
	}
	return &RefundProcessor{
		repos:    repos,
		scope:    scope,
		cfg:      cfg,
		registry: cfg.Registry,
	}
}

// Refund splits a refund across the categories of the rental's latest
// invoice and posts one Refund entry per category. Callers are expected to
// have checked that each category still has refundable money.
func (p *RefundProcessor) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "refund_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrPaymentID, req.PaymentID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	var result *RefundResult
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationRefundPayment, nil), func(c context.Context) {
		result, opErr = p.refund(c, req)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}
	if !result.Replayed {
		p.cfg.Metrics.RecordRefund(ctx, req.TenantID, result.Amount, len(result.Shares))
	}
	telemetry.SetOK(span)
	return result, nil
}

func (p *RefundProcessor) refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	log := p.cfg.Logger.With(
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("payment_id", req.PaymentID.String()),
	)

	amount := valueobject.RoundCents(req.Amount)
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	payment, err := p.repos.Payments.FindByID(ctx, req.TenantID, req.PaymentID)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		replay, err := p.replay(ctx, payment, req.IdempotencyKey)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	if amount.GreaterThan(payment.RefundableAmount()) {
		return nil, ledger.ErrRefundExceedsPayment.WithDetail(fmt.Sprintf(
			"requested %s, refundable %s", amount.StringFixed(2), payment.RefundableAmount().StringFixed(2)))
	}

	shares, err := p.split(ctx, payment, amount)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	var stripeRefundID string
	if payment.ExternalRef != "" && p.cfg.Gateway != nil {
		gatewayKey := key
		if gatewayKey == "" {
			// Stable across retries of the same refund step
			gatewayKey = fmt.Sprintf("refund-%s-%s-%s", payment.ID, payment.RefundAmount.StringFixed(2), amount.StringFixed(2))
		}
		stripeRefundID, err = p.cfg.Gateway.Refund(ctx, GatewayRefundRequest{
			PaymentIntentID: payment.ExternalRef,
			Amount:          amount,
			Currency:        p.cfg.Currency,
			Reason:          req.Reason,
			IdempotencyKey:  gatewayKey,
			Metadata: map[string]string{
				"tenant_id":  payment.TenantID.String(),
				"payment_id": payment.ID.String(),
			},
		})
		if err != nil {
			log.Error("gateway refund failed", zap.Error(err))
			return nil, fmt.Errorf("failed to refund with payment provider: %w", err)
		}
		log.Info("gateway refund issued", zap.String("stripe_refund_id", stripeRefundID))
		if key == "" {
			key = stripeRefundID
		}
	}
	if key == "" {
		key = uuid.New().String()
	}

	entryIDs, payment, err := p.post(ctx, payment, shares, key, amount, req.Reason)
	if err != nil {
		log.Error("failed to post refund", zap.String("stripe_refund_id", stripeRefundID), zap.Error(err))
		return nil, err
	}

	if p.cfg.Cache != nil {
		if err := p.cfg.Cache.Invalidate(ctx, payment.TenantID, payment.ID); err != nil {
			log.Warn("failed to invalidate refunded cache", zap.Error(err))
		}
	}
	p.publish(ctx, log, payment)

	log.Info("payment refunded",
		zap.String("amount", amount.StringFixed(2)),
		zap.Int("shares", len(shares)),
		zap.String("status", payment.Status.String()),
	)
	return &RefundResult{
		PaymentID:      payment.ID,
		Amount:         amount,
		StripeRefundID: stripeRefundID,
		LedgerEntryIDs: entryIDs,
		Shares:         shares,
		Status:         payment.Status,
		RefundStatus:   payment.RefundStatus,
	}, nil
}

// split distributes amount over the rental's latest invoice. A payment
// with no rental or no usable invoice refunds everything under Other.
func (p *RefundProcessor) split(ctx context.Context, payment *ledger.Payment, amount decimal.Decimal) ([]ledger.RefundShare, error) {
	fallback := []ledger.RefundShare{{Category: ledger.CategoryOther, InvoiceAmount: decimal.Zero, Amount: amount}}
	if payment.RentalID == nil {
		return fallback, nil
	}
	invoice, err := p.repos.Invoices.FindLatestByRental(ctx, payment.TenantID, *payment.RentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if invoice == nil {
		return fallback, nil
	}
	lines := invoice.Lines(p.registry)
	if len(lines) == 0 {
		return fallback, nil
	}
	return ledger.SplitRefund(amount, lines)
}

// post writes the refund entries, their P&L reversals and the payment
// update in one transaction, retrying on a payment version conflict
func (p *RefundProcessor) post(ctx context.Context, payment *ledger.Payment, shares []ledger.RefundShare, key string, amount decimal.Decimal, reason string) ([]uuid.UUID, *ledger.Payment, error) {
	var (
		entryIDs []uuid.UUID
		saved    *ledger.Payment
	)
	for attempt := 1; ; attempt++ {
		err := p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			entryIDs = make([]uuid.UUID, 0, len(shares))
			current, err := repos.PaymentRepo().FindByID(ctx, payment.TenantID, payment.ID)
			if err != nil {
				return err
			}
			if err := current.RecordRefund(amount, reason); err != nil {
				return err
			}
			customerID := current.CustomerID
			for _, share := range shares {
				entry, err := ledger.NewRefundEntry(current.TenantID, ledger.RefundParams{
					CustomerID: &customerID,
					RentalID:   current.RentalID,
					PaymentID:  &current.ID,
					Category:   share.Category,
					Amount:     share.Amount,
					Reference:  ledger.RefundReference(key, share.Category),
				})
				if err != nil {
					return err
				}
				if err := repos.EntryRepo().Create(ctx, entry); err != nil {
					return fmt.Errorf("failed to post %s refund: %w", share.Category, err)
				}
				if err := repos.PnLRepo().Create(ctx, ledger.NewRevenueReversalForRefund(entry)); err != nil {
					return fmt.Errorf("failed to post %s revenue reversal: %w", share.Category, err)
				}
				entryIDs = append(entryIDs, entry.ID)
			}
			if err := repos.PaymentRepo().SaveWithLock(ctx, current); err != nil {
				return err
			}
			saved = current
			return nil
		})
		if err == nil {
			return entryIDs, saved, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= maxSaveAttempts {
			return nil, nil, err
		}
	}
}

// replay returns the earlier outcome of a refund posted under key, or nil
func (p *RefundProcessor) replay(ctx context.Context, payment *ledger.Payment, key string) (*RefundResult, error) {
	entries, err := p.repos.Entries.FindByPayment(ctx, payment.TenantID, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment entries: %w", err)
	}
	prefix := ledger.RefundReference(key, "")
	result := &RefundResult{
		PaymentID:      payment.ID,
		Amount:         decimal.Zero,
		LedgerEntryIDs: []uuid.UUID{},
		Shares:         []ledger.RefundShare{},
		Status:         payment.Status,
		RefundStatus:   payment.RefundStatus,
		Replayed:       true,
	}
	for _, entry := range entries {
		if entry.Type != ledger.EntryTypeRefund || !strings.HasPrefix(entry.Reference, prefix) {
			continue
		}
		share := entry.Amount.Neg()
		result.LedgerEntryIDs = append(result.LedgerEntryIDs, entry.ID)
		result.Shares = append(result.Shares, ledger.RefundShare{Category: entry.Category, Amount: share})
		result.Amount = result.Amount.Add(share)
	}
	if len(result.LedgerEntryIDs) == 0 {
		return nil, nil
	}
	return result, nil
}

// RefundedByCategory returns how much of a payment has been refunded per
// category, served from the cache when one is configured
func (p *RefundProcessor) RefundedByCategory(ctx context.Context, tenantID, paymentID uuid.UUID) (map[ledger.Category]decimal.Decimal, error) {
	if p.cfg.Cache != nil {
		totals, ok, err := p.cfg.Cache.Get(ctx, tenantID, paymentID)
		if err != nil {
			p.cfg.Logger.Warn("refunded cache read failed", zap.String("payment_id", paymentID.String()), zap.Error(err))
		} else if ok {
			return totals, nil
		}
	}
	totals, err := p.repos.Entries.SumRefundedByCategory(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.cfg.Cache != nil {
		if err := p.cfg.Cache.Set(ctx, tenantID, paymentID, totals, p.cfg.CacheTTL); err != nil {
			p.cfg.Logger.Warn("refunded cache write failed", zap.String("payment_id", paymentID.String()), zap.Error(err))
		}
	}
	return totals, nil
}

// DeductFromCharge applies part of a rental's held deposit to the oldest
// outstanding charge of a category. The deposit posting and the charge
// decrement commit together.
func (p *RefundProcessor) DeductFromCharge(ctx context.Context, req DeductRequest) (*DeductResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "deduct_from_charge")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrRentalID, req.RentalID.String(),
		telemetry.SpanAttrCategory, req.Category.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	amount := valueobject.RoundCents(req.Amount)
	if !amount.IsPositive() {
		telemetry.RecordError(span, ledger.ErrInvalidAmount)
		return nil, ledger.ErrInvalidAmount
	}
	if !req.Category.IsValid() {
		err := ledger.ErrInvalidCategory.WithDetail(req.Category.String())
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *DeductResult
	err := p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		charges, err := repos.EntryRepo().FindOutstandingCharges(ctx, req.TenantID, ledger.ChargeFilter{
			RentalID: &req.RentalID,
			Category: req.Category,
		})
		if err != nil {
			return err
		}
		if len(charges) == 0 {
			return ledger.ErrChargeNotFound.WithDetail(fmt.Sprintf("no outstanding %s charge for rental %s", req.Category, req.RentalID))
		}
		charge := charges[0]
		if amount.GreaterThan(charge.RemainingAmount) {
			return ledger.ErrConstraintViolation.WithDetail(fmt.Sprintf(
				"deduction %s exceeds remaining %s", amount.StringFixed(2), charge.RemainingAmount.StringFixed(2)))
		}

		deduction, err := ledger.NewDeductionEntry(charge, amount)
		if err != nil {
			return err
		}
		if err := repos.EntryRepo().Create(ctx, deduction); err != nil {
			return fmt.Errorf("failed to post deposit deduction: %w", err)
		}
		remaining, err := repos.EntryRepo().DecrementRemaining(ctx, req.TenantID, charge.ID, amount)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientRemaining) {
				return ledger.ErrConstraintViolation.WithDetail("charge was settled concurrently")
			}
			return err
		}
		if err := repos.PnLRepo().Create(ctx, ledger.NewRevenueForDeduction(charge, deduction)); err != nil {
			return fmt.Errorf("failed to post deduction revenue: %w", err)
		}
		result = &DeductResult{ChargeID: charge.ID, EntryID: deduction.ID, NewRemaining: remaining}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	p.cfg.Logger.Info("deposit applied to charge",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("rental_id", req.RentalID.String()),
		zap.String("charge_id", result.ChargeID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("new_remaining", result.NewRemaining.StringFixed(2)),
	)
	telemetry.SetOK(span)
	return result, nil
}

func (p *RefundProcessor) publish(ctx context.Context, log *zap.Logger, payment *ledger.Payment) {
	events := payment.PullEvents()
	if p.cfg.Publisher == nil || len(events) == 0 {
		return
	}
	if err := p.cfg.Publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish refund events", zap.Error(err))
	}
}
