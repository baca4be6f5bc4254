package ledger

import (
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RefundShare is the part of a refund attributed to one invoice category
type RefundShare struct {
	Category      Category
	InvoiceAmount decimal.Decimal
	Amount        decimal.Decimal
}

// SplitRefund distributes a refund across invoice lines in proportion to
// each line's share of the invoice total. Shares are in minor units and sum
// exactly to the refund; lines whose share rounds to zero are omitted.
func SplitRefund(amount decimal.Decimal, lines []InvoiceLine) ([]RefundShare, error) {
	amount = valueobject.RoundCents(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(lines) == 0 {
		return nil, ErrInvoiceNotFound.WithDetail("invoice has no positive lines")
	}

	weights := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		weights[i] = line.Amount
	}
	amounts, err := valueobject.AllocateByWeights(amount, weights)
	if err != nil {
		return nil, ErrInvoiceNotFound.WithDetail(err.Error())
	}

	shares := make([]RefundShare, 0, len(lines))
	for i, line := range lines {
		if !amounts[i].IsPositive() {
			continue
		}
		shares = append(shares, RefundShare{
			Category:      line.Category,
			InvoiceAmount: line.Amount,
			Amount:        amounts[i],
		})
	}
	return shares, nil
}
