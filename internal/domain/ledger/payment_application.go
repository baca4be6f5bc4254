package ledger

import (
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentApplication links a payment to a charge it settled. Rows are
// written once and only removed together with their charge.
type PaymentApplication struct {
	shared.TenantEntity
	PaymentID     uuid.UUID
	ChargeEntryID uuid.UUID
	AmountApplied decimal.Decimal
}

// NewPaymentApplication creates an application row
func NewPaymentApplication(tenantID, paymentID, chargeEntryID uuid.UUID, amount decimal.Decimal) (*PaymentApplication, error) {
	if paymentID == uuid.Nil || chargeEntryID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithDetail("payment and charge IDs are required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &PaymentApplication{
		TenantEntity:  shared.NewTenantEntity(tenantID),
		PaymentID:     paymentID,
		ChargeEntryID: chargeEntryID,
		AmountApplied: amount,
	}, nil
}
