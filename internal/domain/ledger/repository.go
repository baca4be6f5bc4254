package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeFilter narrows outstanding-charge queries
type ChargeFilter struct {
	CustomerID *uuid.UUID
	RentalID   *uuid.UUID
	Category   Category
}

// LedgerEntryRepository stores ledger entries. Every method is tenant scoped.
type LedgerEntryRepository interface {
	// FindByID returns ErrChargeNotFound when the entry does not exist
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*LedgerEntry, error)

	// FindOutstandingCharges returns charges with remaining > 0 ordered by
	// due_date, entry_date, id ascending
	FindOutstandingCharges(ctx context.Context, tenantID uuid.UUID, filter ChargeFilter) ([]*LedgerEntry, error)

	// FindByRental returns every entry of a rental ordered by entry date
	FindByRental(ctx context.Context, tenantID, rentalID uuid.UUID) ([]*LedgerEntry, error)

	// FindByPayment returns the entries that reference a payment
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*LedgerEntry, error)

	// FindPaymentEntry returns the Payment row of a payment, or nil
	FindPaymentEntry(ctx context.Context, tenantID, paymentID uuid.UUID) (*LedgerEntry, error)

	// Create inserts an entry. A unique-constraint conflict (second Payment
	// row for a payment, second materialization of an invoice charge)
	// returns ErrDuplicateEntry; any other failure is returned wrapped.
	Create(ctx context.Context, entry *LedgerEntry) error

	// DecrementRemaining atomically lowers a charge's remaining amount and
	// returns the new value. It fails with ErrInsufficientRemaining instead
	// of letting the balance go negative.
	DecrementRemaining(ctx context.Context, tenantID, chargeID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)

	// ReclaimPaymentEntry takes over a Payment row whose owner has not
	// touched it since staleBefore, refreshing its update time. Of several
	// concurrent callers at most one succeeds.
	ReclaimPaymentEntry(ctx context.Context, tenantID, entryID uuid.UUID, staleBefore time.Time) (bool, error)

	// Delete removes an entry
	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	// SumRefundedByCategory totals refunds posted against a payment per category
	SumRefundedByCategory(ctx context.Context, tenantID, paymentID uuid.UUID) (map[Category]decimal.Decimal, error)

	// FindCharges returns every charge of a customer
	FindCharges(ctx context.Context, tenantID, customerID uuid.UUID) ([]*LedgerEntry, error)

	// HasCharges reports whether any charge, settled or not, matches filter
	HasCharges(ctx context.Context, tenantID uuid.UUID, filter ChargeFilter) (bool, error)

	// SumDeductionsByCharges totals deposit deductions per target charge
	SumDeductionsByCharges(ctx context.Context, tenantID uuid.UUID, chargeIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// PaymentRepository stores payments
type PaymentRepository interface {
	// FindByID returns ErrPaymentNotFound when the payment does not exist
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByExternalRef finds a payment by provider reference, or nil
	FindByExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*Payment, error)

	// FindWithCredit returns Credit and Partial payments of a customer with
	// remaining > 0, oldest first
	FindWithCredit(ctx context.Context, tenantID, customerID uuid.UUID) ([]*Payment, error)

	// FindByCustomer returns every payment of a customer
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*Payment, error)

	// FindByIDs returns the payments that exist among ids
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Payment, error)

	// Create inserts a new payment
	Create(ctx context.Context, payment *Payment) error

	// SaveWithLock updates status, remaining and refund fields if the stored
	// version still matches, then bumps the version. A mismatch returns
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// PaymentApplicationRepository stores payment applications
type PaymentApplicationRepository interface {
	Create(ctx context.Context, app *PaymentApplication) error
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*PaymentApplication, error)
	FindByCharge(ctx context.Context, tenantID, chargeID uuid.UUID) ([]*PaymentApplication, error)
	SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error)
	// SumByCharges totals applications per charge for the given charges
	SumByCharges(ctx context.Context, tenantID uuid.UUID, chargeIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	DeleteByCharge(ctx context.Context, tenantID, chargeID uuid.UUID) error
}

// InvoiceRepository reads invoice snapshots
type InvoiceRepository interface {
	// FindLatestByRental returns the newest invoice of a rental, or nil
	FindLatestByRental(ctx context.Context, tenantID, rentalID uuid.UUID) (*Invoice, error)
	Create(ctx context.Context, invoice *Invoice) error
}

// PnLRepository writes profit and loss postings
type PnLRepository interface {
	// Create inserts a posting. A posting whose reference already exists is
	// skipped without error.
	Create(ctx context.Context, entry *PnLEntry) error
	FindByRental(ctx context.Context, tenantID, rentalID uuid.UUID) ([]*PnLEntry, error)
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*PnLEntry, error)
}
