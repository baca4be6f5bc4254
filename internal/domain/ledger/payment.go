package ledger

import (
	"fmt"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents how much of a payment has been allocated or refunded
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "Pending"        // Received, not yet allocated
	PaymentStatusApplied       PaymentStatus = "Applied"        // Fully allocated, remaining = 0
	PaymentStatusPartial       PaymentStatus = "Partial"        // 0 < remaining < amount
	PaymentStatusCredit        PaymentStatus = "Credit"         // Nothing allocated, remaining = amount
	PaymentStatusRefunded      PaymentStatus = "Refunded"       // Refunded in full
	PaymentStatusPartialRefund PaymentStatus = "Partial Refund" // Refunded in part
)

// IsValid checks if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApplied, PaymentStatusPartial,
		PaymentStatusCredit, PaymentStatusRefunded, PaymentStatusPartialRefund:
		return true
	}
	return false
}

// String returns the string representation
func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true for the refund branches
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusRefunded || s == PaymentStatusPartialRefund
}

// IsAllocated returns true once the allocation pass has completed
func (s PaymentStatus) IsAllocated() bool {
	return s != PaymentStatusPending
}

// HoldsCredit returns true if unapplied money may remain on the payment.
// A partial refund keeps whatever credit the refund did not consume.
func (s PaymentStatus) HoldsCredit() bool {
	return s == PaymentStatusCredit || s == PaymentStatusPartial || s == PaymentStatusPartialRefund
}

// CreditStatusNames lists, as stored strings, the statuses HoldsCredit accepts
func CreditStatusNames() []string {
	return []string{string(PaymentStatusCredit), string(PaymentStatusPartial), string(PaymentStatusPartialRefund)}
}

// PaymentType describes why money was received
type PaymentType string

const (
	PaymentTypePayment    PaymentType = "Payment"
	PaymentTypeInitialFee PaymentType = "InitialFee"
	PaymentTypeFine       PaymentType = "Fine"
	PaymentTypeDeposit    PaymentType = "Deposit"
	PaymentTypeExtension  PaymentType = "Extension"
)

// IsValid checks if the payment type is non-empty
func (t PaymentType) IsValid() bool {
	return t != ""
}

// LedgerCategory is the category stamped on the payment's ledger row
func (t PaymentType) LedgerCategory() Category {
	switch t {
	case PaymentTypeInitialFee:
		return CategoryInitialFee
	case PaymentTypeFine:
		return CategoryFines
	case PaymentTypeDeposit:
		return CategorySecurityDeposit
	case PaymentTypeExtension:
		return CategoryExtension
	}
	return CategoryRental
}

// RefundStatus tracks money returned against a payment
type RefundStatus string

const (
	RefundStatusNone    RefundStatus = "None"
	RefundStatusPartial RefundStatus = "Partial"
	RefundStatusFull    RefundStatus = "Full"
)

// Payment is the source-of-truth record for money received. Only the
// status, the remaining amount and the refund fields change after creation.
type Payment struct {
	shared.TenantAggregateRoot
	CustomerID       uuid.UUID
	RentalID         *uuid.UUID
	Amount           decimal.Decimal
	PaymentType      PaymentType
	Method           string
	Status           PaymentStatus
	RemainingAmount  decimal.Decimal
	RefundAmount     decimal.Decimal
	RefundStatus     RefundStatus
	TargetCategories []Category
	PaymentDate      time.Time
	ExternalRef      string // Stripe payment intent id, when paid online
}

// NewPaymentParams holds the data needed to record a payment
type NewPaymentParams struct {
	CustomerID       uuid.UUID
	RentalID         *uuid.UUID
	Amount           decimal.Decimal
	PaymentType      PaymentType
	Method           string
	TargetCategories []Category
	PaymentDate      time.Time
	ExternalRef      string
}

// NewPayment records money received in Pending status
func NewPayment(tenantID uuid.UUID, p NewPaymentParams) (*Payment, error) {
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	amount := valueobject.RoundCents(p.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	paymentType := p.PaymentType
	if !paymentType.IsValid() {
		paymentType = PaymentTypePayment
	}
	for _, c := range p.TargetCategories {
		if !c.IsValid() {
			return nil, ErrInvalidCategory.WithDetail(c.String())
		}
	}
	paymentDate := p.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	payment := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          p.CustomerID,
		RentalID:            p.RentalID,
		Amount:              amount,
		PaymentType:         paymentType,
		Method:              p.Method,
		Status:              PaymentStatusPending,
		RemainingAmount:     amount,
		RefundAmount:        decimal.Zero,
		RefundStatus:        RefundStatusNone,
		TargetCategories:    p.TargetCategories,
		PaymentDate:         paymentDate,
		ExternalRef:         p.ExternalRef,
	}
	payment.RecordEvent(NewPaymentRecordedEvent(payment))
	return payment, nil
}

// StatusForRemaining derives the allocation status from what is left over
func StatusForRemaining(amount, remaining decimal.Decimal) PaymentStatus {
	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		return PaymentStatusApplied
	case remaining.GreaterThanOrEqual(amount):
		return PaymentStatusCredit
	default:
		return PaymentStatusPartial
	}
}

// AllocationTargets returns the categories an allocation should walk:
// the explicit override if given, else the targets stored on the payment.
// An empty result means the default priority applies.
func (p *Payment) AllocationTargets(override []Category) []Category {
	if len(override) > 0 {
		return override
	}
	return p.TargetCategories
}

// CompleteAllocation records the outcome of an allocation pass given the
// total allocated across all of the payment's applications.
func (p *Payment) CompleteAllocation(totalAllocated decimal.Decimal) error {
	if totalAllocated.IsNegative() || totalAllocated.GreaterThan(p.Amount) {
		return ErrConstraintViolation.WithDetail(fmt.Sprintf(
			"allocated %s outside [0, %s]", totalAllocated.StringFixed(2), p.Amount.StringFixed(2)))
	}
	p.RemainingAmount = p.CreditFor(totalAllocated)
	if !p.Status.IsTerminal() {
		p.Status = StatusForRemaining(p.Amount, p.RemainingAmount)
	}
	p.Touch()
	p.RecordEvent(NewPaymentAllocatedEvent(p, totalAllocated))
	return nil
}

// CreditFor is the unapplied money left once applied has been allocated.
// Refunded money is never credit.
func (p *Payment) CreditFor(applied decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, p.Amount.Sub(applied).Sub(p.RefundAmount))
}

// ConsumeCredit lowers the unapplied amount after a credit sweep applied it
func (p *Payment) ConsumeCredit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(p.RemainingAmount) {
		return ErrConstraintViolation.WithDetail("credit consumed exceeds remaining amount")
	}
	p.RemainingAmount = p.RemainingAmount.Sub(amount)
	if !p.Status.IsTerminal() {
		p.Status = StatusForRemaining(p.Amount, p.RemainingAmount)
	}
	p.Touch()
	return nil
}

// RestoreCredit returns money to the payment when a charge it settled is
// reversed. released is what the reversed charge had taken and stillApplied
// what the payment's other applications hold. Released money a refund
// already paid out does not come back as credit; the credit actually
// restored is returned.
func (p *Payment) RestoreCredit(released, stillApplied decimal.Decimal) (decimal.Decimal, error) {
	if !released.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if stillApplied.IsNegative() || stillApplied.Add(released).GreaterThan(p.Amount) {
		return decimal.Zero, ErrConstraintViolation.WithDetail("restored credit exceeds payment amount")
	}
	credit := p.CreditFor(stillApplied)
	restored := credit.Sub(p.RemainingAmount)
	if restored.IsNegative() || restored.GreaterThan(released) {
		return decimal.Zero, ErrConstraintViolation.WithDetail(fmt.Sprintf(
			"restored credit %s outside [0, %s]", restored.StringFixed(2), released.StringFixed(2)))
	}
	p.RemainingAmount = credit
	if !p.Status.IsTerminal() && p.Status.IsAllocated() {
		p.Status = StatusForRemaining(p.Amount, p.RemainingAmount)
	}
	p.Touch()
	return restored, nil
}

// RefundableAmount is what can still be returned to the customer
func (p *Payment) RefundableAmount() decimal.Decimal {
	return p.Amount.Sub(p.RefundAmount)
}

// RecordRefund books a refund against the payment
func (p *Payment) RecordRefund(amount decimal.Decimal, reason string) error {
	amount = valueobject.RoundCents(amount)
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(p.RefundableAmount()) {
		return ErrRefundExceedsPayment.WithDetail(fmt.Sprintf(
			"requested %s, refundable %s", amount.StringFixed(2), p.RefundableAmount().StringFixed(2)))
	}
	p.RefundAmount = p.RefundAmount.Add(amount)
	// Unapplied credit is paid out first
	p.RemainingAmount = p.RemainingAmount.Sub(decimal.Min(amount, p.RemainingAmount))
	if p.RefundAmount.Equal(p.Amount) {
		p.Status = PaymentStatusRefunded
		p.RefundStatus = RefundStatusFull
	} else {
		p.Status = PaymentStatusPartialRefund
		p.RefundStatus = RefundStatusPartial
	}
	p.Touch()
	p.RecordEvent(NewPaymentRefundedEvent(p, amount, reason))
	return nil
}
