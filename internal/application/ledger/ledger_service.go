package ledger

import (
	"context"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordPaymentResult is a stored payment and, when requested, the outcome
// of allocating it straight away
type RecordPaymentResult struct {
	Payment    *ledger.Payment
	Allocation *ProcessResult
}

// PaymentDetail is a payment with the charges it settled and what has been
// refunded from it
type PaymentDetail struct {
	Payment            *ledger.Payment
	Applications       []*ledger.PaymentApplication
	RefundedByCategory map[ledger.Category]decimal.Decimal
}

// CustomerBalance summarises what a customer owes and holds
type CustomerBalance struct {
	CustomerID          uuid.UUID
	Outstanding         decimal.Decimal
	OutstandingCategory map[ledger.Category]decimal.Decimal
	Charges             []*ledger.LedgerEntry
	Credit              decimal.Decimal
	CreditPayments      []*ledger.Payment
}

// RentalLedger is every ledger row and revenue posting of a rental
type RentalLedger struct {
	RentalID uuid.UUID
	Entries  []*ledger.LedgerEntry
	PnL      []*ledger.PnLEntry
	Invoice  *ledger.Invoice
}

// LedgerService is the entry point used by the HTTP handlers. It records
// payments and answers read queries, delegating allocation and refunds to
// the processors.
type LedgerService struct {
	repos     Repositories
	processor *PaymentProcessor
	refunds   *RefundProcessor
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewLedgerService creates a LedgerService
func NewLedgerService(repos Repositories, processor *PaymentProcessor, refunds *RefundProcessor, publisher shared.EventPublisher, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		repos:     repos,
		processor: processor,
		refunds:   refunds,
		publisher: publisher,
		logger:    logger,
	}
}

// RecordPayment stores a Pending payment and optionally allocates it.
// Allocation errors are returned alongside the stored payment.
func (s *LedgerService) RecordPayment(ctx context.Context, tenantID uuid.UUID, params ledger.NewPaymentParams, apply bool) (*RecordPaymentResult, error) {
	payment, err := ledger.NewPayment(tenantID, params)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	events := payment.PullEvents()
	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish payment events", zap.Error(err))
		}
	}
	s.logger.Info("payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("type", string(payment.PaymentType)),
	)

	result := &RecordPaymentResult{Payment: payment}
	if !apply {
		return result, nil
	}
	result.Allocation, err = s.processor.Process(ctx, tenantID, payment.ID, nil)
	return result, err
}

// ApplyPayment allocates a payment
func (s *LedgerService) ApplyPayment(ctx context.Context, tenantID, paymentID uuid.UUID, targets []ledger.Category) (*ProcessResult, error) {
	return s.processor.Process(ctx, tenantID, paymentID, targets)
}

// Refund returns money against a payment
func (s *LedgerService) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return s.refunds.Refund(ctx, req)
}

// DeductFromCharge applies part of a rental's deposit to a charge
func (s *LedgerService) DeductFromCharge(ctx context.Context, req DeductRequest) (*DeductResult, error) {
	return s.refunds.DeductFromCharge(ctx, req)
}

// FindPaymentByExternalRef looks a payment up by provider reference
func (s *LedgerService) FindPaymentByExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*ledger.Payment, error) {
	return s.repos.Payments.FindByExternalRef(ctx, tenantID, ref)
}

// GetPayment returns a payment with its applications and refunded totals
func (s *LedgerService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentDetail, error) {
	payment, err := s.repos.Payments.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	apps, err := s.repos.Applications.FindByPayment(ctx, tenantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}
	refunded, err := s.refunds.RefundedByCategory(ctx, tenantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refunds: %w", err)
	}
	return &PaymentDetail{Payment: payment, Applications: apps, RefundedByCategory: refunded}, nil
}

// CustomerBalance returns a customer's outstanding charges and held credit
func (s *LedgerService) CustomerBalance(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerBalance, error) {
	charges, err := s.repos.Entries.FindOutstandingCharges(ctx, tenantID, ledger.ChargeFilter{CustomerID: &customerID})
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding charges: %w", err)
	}
	credits, err := s.repos.Payments.FindWithCredit(ctx, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit: %w", err)
	}

	balance := &CustomerBalance{
		CustomerID:          customerID,
		Outstanding:         decimal.Zero,
		OutstandingCategory: make(map[ledger.Category]decimal.Decimal),
		Charges:             charges,
		Credit:              decimal.Zero,
		CreditPayments:      credits,
	}
	for _, charge := range charges {
		balance.Outstanding = balance.Outstanding.Add(charge.RemainingAmount)
		balance.OutstandingCategory[charge.Category] = balance.OutstandingCategory[charge.Category].Add(charge.RemainingAmount)
	}
	for _, payment := range credits {
		balance.Credit = balance.Credit.Add(payment.RemainingAmount)
	}
	return balance, nil
}

// RentalLedger returns the ledger rows, revenue postings and latest invoice
// of a rental
func (s *LedgerService) RentalLedger(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalLedger, error) {
	entries, err := s.repos.Entries.FindByRental(ctx, tenantID, rentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rental entries: %w", err)
	}
	pnl, err := s.repos.PnL.FindByRental(ctx, tenantID, rentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rental revenue: %w", err)
	}
	invoice, err := s.repos.Invoices.FindLatestByRental(ctx, tenantID, rentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return &RentalLedger{RentalID: rentalID, Entries: entries, PnL: pnl, Invoice: invoice}, nil
}
