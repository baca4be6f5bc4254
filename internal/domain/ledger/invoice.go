package ledger

import (
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a point-in-time snapshot of what a rental is expected to cost.
// The engine only reads invoices.
type Invoice struct {
	shared.TenantEntity
	RentalID         uuid.UUID
	CustomerID       uuid.UUID
	InvoiceNumber    string
	RentalFee        decimal.Decimal
	Tax              decimal.Decimal
	ServiceFee       decimal.Decimal
	SecurityDeposit  decimal.Decimal
	DeliveryFee      decimal.Decimal
	CollectionFee    decimal.Decimal
	Extras           decimal.Decimal
	InsurancePremium decimal.Decimal
	IssuedAt         time.Time
	DueDate          *time.Time
}

// InvoiceLine is one positive category amount of an invoice
type InvoiceLine struct {
	Category Category
	Amount   decimal.Decimal
}

// FieldAmount returns the amount held in an invoice field
func (inv *Invoice) FieldAmount(field InvoiceField) decimal.Decimal {
	switch field {
	case InvoiceFieldRentalFee:
		return inv.RentalFee
	case InvoiceFieldTax:
		return inv.Tax
	case InvoiceFieldServiceFee:
		return inv.ServiceFee
	case InvoiceFieldSecurityDeposit:
		return inv.SecurityDeposit
	case InvoiceFieldDeliveryFee:
		return inv.DeliveryFee
	case InvoiceFieldCollectionFee:
		return inv.CollectionFee
	case InvoiceFieldExtras:
		return inv.Extras
	case InvoiceFieldInsurancePremium:
		return inv.InsurancePremium
	}
	return decimal.Zero
}

// AmountFor returns the invoiced amount of a category, or false if the
// category has no invoice field
func (inv *Invoice) AmountFor(registry *CategoryRegistry, category Category) (decimal.Decimal, bool) {
	field, ok := registry.FieldFor(category)
	if !ok {
		return decimal.Zero, false
	}
	return inv.FieldAmount(field), true
}

// Lines returns the positive category amounts in registry order
func (inv *Invoice) Lines(registry *CategoryRegistry) []InvoiceLine {
	lines := make([]InvoiceLine, 0)
	for _, category := range registry.Categories() {
		amount, _ := inv.AmountFor(registry, category)
		if amount.IsPositive() {
			lines = append(lines, InvoiceLine{Category: category, Amount: amount})
		}
	}
	return lines
}

// Total is the sum of every positive line
func (inv *Invoice) Total(registry *CategoryRegistry) decimal.Decimal {
	total := decimal.Zero
	for _, line := range inv.Lines(registry) {
		total = total.Add(line.Amount)
	}
	return total
}
