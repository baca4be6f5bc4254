package ledger

import (
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PnLSide separates revenue from cost postings
type PnLSide string

const (
	PnLSideRevenue PnLSide = "Revenue"
	PnLSideCost    PnLSide = "Cost"
)

// PnLEntry is a profitability posting derived from settled or refunded
// money. It never participates in balance tracking.
type PnLEntry struct {
	shared.TenantEntity
	RentalID      *uuid.UUID
	VehicleID     *uuid.UUID
	CustomerID    *uuid.UUID
	PaymentID     *uuid.UUID
	ChargeEntryID *uuid.UUID
	Side          PnLSide
	Category      Category
	Amount        decimal.Decimal
	EntryDate     time.Time
	Reference     string // unique per tenant, makes re-posting a no-op
}

// NewRevenueForApplication books revenue for money applied to a charge. The
// entry is dated at the charge's recognition date, not the cash date.
func NewRevenueForApplication(charge *LedgerEntry, app *PaymentApplication) *PnLEntry {
	paymentID := app.PaymentID
	chargeID := charge.ID
	return &PnLEntry{
		TenantEntity:  shared.NewTenantEntity(charge.TenantID),
		RentalID:      charge.RentalID,
		VehicleID:     charge.VehicleID,
		CustomerID:    charge.CustomerID,
		PaymentID:     &paymentID,
		ChargeEntryID: &chargeID,
		Side:          PnLSideRevenue,
		Category:      charge.Category,
		Amount:        app.AmountApplied,
		EntryDate:     charge.RecognitionDate(),
		Reference:     "APP-" + app.ID.String(),
	}
}

// NewRevenueReversalForRefund books negative revenue for a refund entry
func NewRevenueReversalForRefund(refund *LedgerEntry) *PnLEntry {
	return &PnLEntry{
		TenantEntity: shared.NewTenantEntity(refund.TenantID),
		RentalID:     refund.RentalID,
		VehicleID:    refund.VehicleID,
		CustomerID:   refund.CustomerID,
		PaymentID:    refund.PaymentID,
		Side:         PnLSideRevenue,
		Category:     refund.Category,
		Amount:       refund.Amount, // already negative
		EntryDate:    refund.EntryDate,
		Reference:    "RFD-" + refund.ID.String(),
	}
}

// NewRevenueReversalForApplication books negative revenue for an application
// removed together with its reversed charge
func NewRevenueReversalForApplication(charge *LedgerEntry, app *PaymentApplication) *PnLEntry {
	entry := NewRevenueForApplication(charge, app)
	entry.Amount = app.AmountApplied.Neg()
	entry.EntryDate = time.Now()
	entry.Reference = "REV-" + app.ID.String()
	return entry
}

// NewRevenueForDeduction books revenue for the part of a charge settled out
// of a held deposit
func NewRevenueForDeduction(charge *LedgerEntry, deduction *LedgerEntry) *PnLEntry {
	chargeID := charge.ID
	return &PnLEntry{
		TenantEntity:  shared.NewTenantEntity(charge.TenantID),
		RentalID:      charge.RentalID,
		VehicleID:     charge.VehicleID,
		CustomerID:    charge.CustomerID,
		ChargeEntryID: &chargeID,
		Side:          PnLSideRevenue,
		Category:      charge.Category,
		Amount:        deduction.Amount.Neg(),
		EntryDate:     charge.RecognitionDate(),
		Reference:     deduction.Reference,
	}
}
