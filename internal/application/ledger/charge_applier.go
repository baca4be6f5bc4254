package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// chargeApplier posts one allocation step: the atomic decrement of the
// charge, the application row and the revenue posting. Steps are not
// wrapped in a transaction so that progress survives a later failure.
type chargeApplier struct {
	tenantID     uuid.UUID
	paymentID    uuid.UUID
	entries      ledger.LedgerEntryRepository
	applications ledger.PaymentApplicationRepository
	pnl          ledger.PnLRepository
	logger       *zap.Logger
}

func newChargeApplier(tenantID, paymentID uuid.UUID, entries ledger.LedgerEntryRepository, applications ledger.PaymentApplicationRepository, pnl ledger.PnLRepository, logger *zap.Logger) *chargeApplier {
	return &chargeApplier{
		tenantID:     tenantID,
		paymentID:    paymentID,
		entries:      entries,
		applications: applications,
		pnl:          pnl,
		logger:       logger,
	}
}

// ApplyToCharge implements ledger.ChargeApplier
func (a *chargeApplier) ApplyToCharge(ctx context.Context, charge *ledger.LedgerEntry, amount decimal.Decimal) (decimal.Decimal, error) {
	applied := amount
	newRemaining, err := a.entries.DecrementRemaining(ctx, a.tenantID, charge.ID, applied)
	if errors.Is(err, ledger.ErrInsufficientRemaining) {
		// Someone else settled part of the charge since it was read
		fresh, findErr := a.entries.FindByID(ctx, a.tenantID, charge.ID)
		if findErr != nil {
			return decimal.Zero, findErr
		}
		applied = decimal.Min(amount, fresh.RemainingAmount)
		if !applied.IsPositive() {
			return decimal.Zero, err
		}
		newRemaining, err = a.entries.DecrementRemaining(ctx, a.tenantID, charge.ID, applied)
	}
	if err != nil {
		return decimal.Zero, err
	}
	charge.RemainingAmount = newRemaining

	app, err := ledger.NewPaymentApplication(a.tenantID, a.paymentID, charge.ID, applied)
	if err != nil {
		return applied, a.partial(charge, applied, "application", err)
	}
	if err := a.applications.Create(ctx, app); err != nil {
		return applied, a.partial(charge, applied, "application", err)
	}
	if err := a.pnl.Create(ctx, ledger.NewRevenueForApplication(charge, app)); err != nil {
		return applied, a.partial(charge, applied, "pnl", err)
	}
	return applied, nil
}

func (a *chargeApplier) partial(charge *ledger.LedgerEntry, applied decimal.Decimal, posting string, err error) error {
	a.logger.Error("posting failed after charge decrement",
		zap.String("tenant_id", a.tenantID.String()),
		zap.String("payment_id", a.paymentID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.String("posting", posting),
		zap.String("applied", applied.StringFixed(2)),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s row for charge %s: %v", ledger.ErrPartialPostingFailure, posting, charge.ID, err)
}

var _ ledger.ChargeApplier = (*chargeApplier)(nil)
