package ledger

import (
	"fmt"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType is the kind of financial fact a ledger entry records
type EntryType string

const (
	EntryTypeCharge     EntryType = "Charge"
	EntryTypePayment    EntryType = "Payment"
	EntryTypeRefund     EntryType = "Refund"
	EntryTypeAdjustment EntryType = "Adjustment"
)

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeCharge, EntryTypePayment, EntryTypeRefund, EntryTypeAdjustment:
		return true
	}
	return false
}

// String returns the string representation
func (t EntryType) String() string {
	return string(t)
}

// LedgerEntry is the append-only unit of financial fact. Charges are stored
// with a positive amount, payments and refunds with a negative one. Only the
// remaining amount of a charge ever changes after creation.
type LedgerEntry struct {
	shared.TenantEntity
	RentalID        *uuid.UUID
	CustomerID      *uuid.UUID
	VehicleID       *uuid.UUID
	Type            EntryType
	Category        Category
	Amount          decimal.Decimal
	RemainingAmount decimal.Decimal
	EntryDate       time.Time
	DueDate         *time.Time
	Reference       string
	PaymentID       *uuid.UUID
	// TargetChargeID links a deposit deduction to the charge it settled
	TargetChargeID *uuid.UUID
}

// ChargeParams describes a billable event
type ChargeParams struct {
	CustomerID uuid.UUID
	RentalID   *uuid.UUID
	VehicleID  *uuid.UUID
	Category   Category
	Amount     decimal.Decimal
	EntryDate  time.Time
	DueDate    *time.Time
	Reference  string
}

// MaxReferenceLength is the widest reference ledger_entries can store
const MaxReferenceLength = 200

// NewCharge creates a charge whose remaining amount equals its amount
func NewCharge(tenantID uuid.UUID, p ChargeParams) (*LedgerEntry, error) {
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !p.Category.IsValid() {
		return nil, ErrInvalidCategory.WithDetail(p.Category.String())
	}
	amount := valueobject.RoundCents(p.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(p.Reference) > MaxReferenceLength {
		return nil, ErrConstraintViolation.WithDetail(fmt.Sprintf("reference longer than %d characters", MaxReferenceLength))
	}
	entryDate := p.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now()
	}
	customerID := p.CustomerID
	return &LedgerEntry{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		RentalID:        p.RentalID,
		CustomerID:      &customerID,
		VehicleID:       p.VehicleID,
		Type:            EntryTypeCharge,
		Category:        p.Category,
		Amount:          amount,
		RemainingAmount: amount,
		EntryDate:       entryDate,
		DueDate:         p.DueDate,
		Reference:       p.Reference,
	}, nil
}

// NewPaymentEntry creates the Payment row for a payment. There is at most
// one such row per payment and tenant, and inserting it claims the right to
// allocate the payment.
func NewPaymentEntry(payment *Payment) *LedgerEntry {
	paymentID := payment.ID
	customerID := payment.CustomerID
	return &LedgerEntry{
		TenantEntity:    shared.NewTenantEntity(payment.TenantID),
		RentalID:        payment.RentalID,
		CustomerID:      &customerID,
		Type:            EntryTypePayment,
		Category:        payment.PaymentType.LedgerCategory(),
		Amount:          payment.Amount.Neg(),
		RemainingAmount: decimal.Zero,
		EntryDate:       payment.PaymentDate,
		Reference:       PaymentReference(payment.ID),
		PaymentID:       &paymentID,
	}
}

// RefundParams describes money returned to a customer
type RefundParams struct {
	CustomerID *uuid.UUID
	RentalID   *uuid.UUID
	VehicleID  *uuid.UUID
	PaymentID  *uuid.UUID
	Category   Category
	Amount     decimal.Decimal
	Reference  string
}

// NewRefundEntry creates a Refund row; the amount is given positive and
// stored negative.
func NewRefundEntry(tenantID uuid.UUID, p RefundParams) (*LedgerEntry, error) {
	if !p.Category.IsValid() {
		return nil, ErrInvalidCategory.WithDetail(p.Category.String())
	}
	amount := valueobject.RoundCents(p.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &LedgerEntry{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		RentalID:        p.RentalID,
		CustomerID:      p.CustomerID,
		VehicleID:       p.VehicleID,
		Type:            EntryTypeRefund,
		Category:        p.Category,
		Amount:          amount.Neg(),
		RemainingAmount: decimal.Zero,
		EntryDate:       time.Now(),
		Reference:       p.Reference,
		PaymentID:       p.PaymentID,
	}, nil
}

// NewDeductionEntry creates the Refund/Security Deposit row that moves part
// of a held deposit onto charge
func NewDeductionEntry(charge *LedgerEntry, amount decimal.Decimal) (*LedgerEntry, error) {
	if !charge.IsCharge() {
		return nil, shared.ErrInvalidState.WithDetail("deductions apply to charges only")
	}
	entry, err := NewRefundEntry(charge.TenantID, RefundParams{
		CustomerID: charge.CustomerID,
		RentalID:   charge.RentalID,
		VehicleID:  charge.VehicleID,
		Category:   CategorySecurityDeposit,
		Amount:     amount,
	})
	if err != nil {
		return nil, err
	}
	chargeID := charge.ID
	entry.TargetChargeID = &chargeID
	entry.Reference = fmt.Sprintf("DED-%s-%s", charge.ID, entry.ID)
	return entry, nil
}

// RefundReference is the reference of one category's share of a refund.
// Reusing the same key for a retried refund makes its postings collide
// instead of doubling.
func RefundReference(key string, category Category) string {
	return fmt.Sprintf("RFD-%s-%s", key, category)
}

// IsDeduction reports whether the entry is a deposit deduction
func (e *LedgerEntry) IsDeduction() bool {
	return e.Type == EntryTypeRefund && e.TargetChargeID != nil
}

// PaymentReference is the reference stamped on a payment's ledger row
func PaymentReference(paymentID uuid.UUID) string {
	return "PAY-" + paymentID.String()
}

// InvoiceReference is the reference of a charge materialized from an invoice
func InvoiceReference(invoiceID uuid.UUID, category Category) string {
	return fmt.Sprintf("INV-%s-%s", invoiceID, category)
}

// IsCharge reports whether the entry is a charge
func (e *LedgerEntry) IsCharge() bool {
	return e.Type == EntryTypeCharge
}

// IsOutstanding reports whether a charge still has money owed on it
func (e *LedgerEntry) IsOutstanding() bool {
	return e.IsCharge() && e.RemainingAmount.IsPositive()
}

// Settled returns how much of a charge has been paid off
func (e *LedgerEntry) Settled() decimal.Decimal {
	if !e.IsCharge() {
		return decimal.Zero
	}
	return e.Amount.Sub(e.RemainingAmount)
}

// RecognitionDate is the date revenue for this charge is booked on: the due
// date when there is one, otherwise the entry date.
func (e *LedgerEntry) RecognitionDate() time.Time {
	if e.DueDate != nil {
		return *e.DueDate
	}
	return e.EntryDate
}

// Decrement lowers the remaining amount of a charge in memory. Persistent
// decrements go through LedgerEntryRepository.DecrementRemaining.
func (e *LedgerEntry) Decrement(amount decimal.Decimal) error {
	if !e.IsCharge() {
		return shared.ErrInvalidState.WithDetail("only charges carry a remaining amount")
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(e.RemainingAmount) {
		return ErrInsufficientRemaining
	}
	e.RemainingAmount = e.RemainingAmount.Sub(amount)
	e.Touch()
	return nil
}
