package ledger

import (
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names
const (
	AggregateTypePayment     = "Payment"
	AggregateTypeLedgerEntry = "LedgerEntry"
)

// Event type constants
const (
	EventTypePaymentRecorded  = "PaymentRecorded"
	EventTypePaymentAllocated = "PaymentAllocated"
	EventTypePaymentRefunded  = "PaymentRefunded"
	EventTypeChargeCreated    = "ChargeCreated"
	EventTypeChargeReversed   = "ChargeReversed"
)

// PaymentRecordedEvent is raised when money is received
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
	}
}

// PaymentAllocatedEvent is raised when an allocation pass completes
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentID       uuid.UUID       `json:"payment_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Allocated       decimal.Decimal `json:"allocated"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          PaymentStatus   `json:"status"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, allocated decimal.Decimal) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		CustomerID:      p.CustomerID,
		Allocated:       allocated,
		RemainingAmount: p.RemainingAmount,
		Status:          p.Status,
	}
}

// PaymentRefundedEvent is raised when money is returned against a payment
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	PaymentID    uuid.UUID       `json:"payment_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason"`
}

// NewPaymentRefundedEvent creates a PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment, amount decimal.Decimal, reason string) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRefunded, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		RefundAmount:    amount,
		Reason:          reason,
	}
}

// ChargeCreatedEvent is raised when a new billable event is booked
type ChargeCreatedEvent struct {
	shared.BaseDomainEvent
	ChargeID   uuid.UUID       `json:"charge_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Category   Category        `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
}

// NewChargeCreatedEvent creates a ChargeCreatedEvent
func NewChargeCreatedEvent(charge *LedgerEntry) *ChargeCreatedEvent {
	var customerID uuid.UUID
	if charge.CustomerID != nil {
		customerID = *charge.CustomerID
	}
	return &ChargeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargeCreated, AggregateTypeLedgerEntry, charge.ID, charge.TenantID),
		ChargeID:        charge.ID,
		CustomerID:      customerID,
		Category:        charge.Category,
		Amount:          charge.Amount,
	}
}

// ChargeReversedEvent is raised when a charge and its applications are removed
type ChargeReversedEvent struct {
	shared.BaseDomainEvent
	ChargeID        uuid.UUID       `json:"charge_id"`
	Reason          string          `json:"reason"`
	RestoredCredit  decimal.Decimal `json:"restored_credit"`
	AffectedPayment []uuid.UUID     `json:"affected_payments"`
}

// NewChargeReversedEvent creates a ChargeReversedEvent
func NewChargeReversedEvent(charge *LedgerEntry, reason string, restored decimal.Decimal, payments []uuid.UUID) *ChargeReversedEvent {
	return &ChargeReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargeReversed, AggregateTypeLedgerEntry, charge.ID, charge.TenantID),
		ChargeID:        charge.ID,
		Reason:          reason,
		RestoredCredit:  restored,
		AffectedPayment: payments,
	}
}
