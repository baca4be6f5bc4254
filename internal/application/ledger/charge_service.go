package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateChargeRequest describes a billable event
type CreateChargeRequest struct {
	CustomerID uuid.UUID
	RentalID   *uuid.UUID
	VehicleID  *uuid.UUID
	Category   ledger.Category
	Amount     decimal.Decimal
	EntryDate  time.Time
	DueDate    *time.Time
	Reference  string
}

// ReverseChargeResult reports what a charge reversal undid
type ReverseChargeResult struct {
	ChargeID         uuid.UUID
	RestoredCredit   decimal.Decimal
	AffectedPayments []uuid.UUID
}

// ChargeService books and reverses charges
type ChargeService struct {
	repos     Repositories
	scope     TransactionScope
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewChargeService creates a ChargeService
func NewChargeService(repos Repositories, scope TransactionScope, publisher shared.EventPublisher, logger *zap.Logger) *ChargeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargeService{
		repos:     repos,
		scope:     scope,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateCharge books a charge and announces it so that held credit can be
// swept onto it
func (s *ChargeService) CreateCharge(ctx context.Context, tenantID uuid.UUID, req CreateChargeRequest) (*ledger.LedgerEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_charge")
	defer span.End()

	charge, err := ledger.NewCharge(tenantID, ledger.ChargeParams{
		CustomerID: req.CustomerID,
		RentalID:   req.RentalID,
		VehicleID:  req.VehicleID,
		Category:   req.Category,
		Amount:     req.Amount,
		EntryDate:  req.EntryDate,
		DueDate:    req.DueDate,
		Reference:  req.Reference,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repos.Entries.Create(ctx, charge); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("charge created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.String("customer_id", req.CustomerID.String()),
		zap.String("category", charge.Category.String()),
		zap.String("amount", charge.Amount.StringFixed(2)),
	)
	s.publish(ctx, ledger.NewChargeCreatedEvent(charge))
	telemetry.SetOK(span)
	return charge, nil
}

// ReverseCharge removes a charge with its applications, gives the applied
// money back to the paying payments as credit and reverses the revenue.
// Charges settled from a deposit cannot be reversed here.
func (s *ChargeService) ReverseCharge(ctx context.Context, tenantID, chargeID uuid.UUID, reason string) (*ReverseChargeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse_charge")
	defer span.End()

	var (
		charge *ledger.LedgerEntry
		result = &ReverseChargeResult{ChargeID: chargeID, RestoredCredit: decimal.Zero, AffectedPayments: []uuid.UUID{}}
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		charge, err = repos.EntryRepo().FindByID(ctx, tenantID, chargeID)
		if err != nil {
			return err
		}
		if !charge.IsCharge() {
			return ledger.ErrChargeNotFound.WithDetail(fmt.Sprintf("entry %s is a %s", chargeID, charge.Type))
		}
		deductions, err := repos.EntryRepo().SumDeductionsByCharges(ctx, tenantID, []uuid.UUID{chargeID})
		if err != nil {
			return err
		}
		if deducted := deductions[chargeID]; deducted.IsPositive() {
			return shared.ErrInvalidState.WithDetail("charge was settled from a deposit")
		}

		apps, err := repos.ApplicationRepo().FindByCharge(ctx, tenantID, chargeID)
		if err != nil {
			return err
		}
		perPayment := make(map[uuid.UUID]decimal.Decimal)
		paymentIDs := make([]uuid.UUID, 0)
		for _, app := range apps {
			if _, seen := perPayment[app.PaymentID]; !seen {
				paymentIDs = append(paymentIDs, app.PaymentID)
			}
			perPayment[app.PaymentID] = perPayment[app.PaymentID].Add(app.AmountApplied)
			if err := repos.PnLRepo().Create(ctx, ledger.NewRevenueReversalForApplication(charge, app)); err != nil {
				return fmt.Errorf("failed to reverse revenue: %w", err)
			}
		}

		payments, err := repos.PaymentRepo().FindByIDs(ctx, tenantID, paymentIDs)
		if err != nil {
			return err
		}
		for _, payment := range payments {
			applied, err := repos.ApplicationRepo().SumByPayment(ctx, tenantID, payment.ID)
			if err != nil {
				return err
			}
			released := perPayment[payment.ID]
			restored, err := payment.RestoreCredit(released, applied.Sub(released))
			if err != nil {
				return err
			}
			if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
				return err
			}
			result.RestoredCredit = result.RestoredCredit.Add(restored)
			result.AffectedPayments = append(result.AffectedPayments, payment.ID)
		}

		if err := repos.ApplicationRepo().DeleteByCharge(ctx, tenantID, chargeID); err != nil {
			return err
		}
		return repos.EntryRepo().Delete(ctx, tenantID, chargeID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("charge reversed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_id", chargeID.String()),
		zap.String("reason", reason),
		zap.String("restored_credit", result.RestoredCredit.StringFixed(2)),
		zap.Int("payments", len(result.AffectedPayments)),
	)
	s.publish(ctx, ledger.NewChargeReversedEvent(charge, reason, result.RestoredCredit, result.AffectedPayments))
	telemetry.SetOK(span)
	return result, nil
}

func (s *ChargeService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish charge event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
