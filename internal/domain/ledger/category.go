package ledger

import (
	"strings"
	"sync"
)

// Category classifies a ledger entry. The set is open: any non-empty name is
// accepted, and the constants below are the categories the platform bills
// today. New categories become invoice-backed by registering an invoice
// field in a CategoryRegistry rather than by extending switch statements.
type Category string

const (
	CategoryRental          Category = "Rental"
	CategoryTax             Category = "Tax"
	CategoryInsurance       Category = "Insurance"
	CategoryServiceFee      Category = "Service Fee"
	CategorySecurityDeposit Category = "Security Deposit"
	CategoryDeliveryFee     Category = "Delivery Fee"
	CategoryCollectionFee   Category = "Collection Fee"
	CategoryExtras          Category = "Extras"
	CategoryExcessMileage   Category = "Excess Mileage"
	CategoryExtension       Category = "Extension"
	CategoryInitialFee      Category = "InitialFee"
	CategoryFines           Category = "Fines"
	CategoryOther           Category = "Other"
)

// maxCategoryLength matches the ledger_entries.category column width
const maxCategoryLength = 64

// String returns the string representation
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the category can be stored
func (c Category) IsValid() bool {
	trimmed := strings.TrimSpace(string(c))
	return trimmed != "" && trimmed == string(c) && len(c) <= maxCategoryLength
}

// IsKnown reports whether the category is one of the built-in categories
func (c Category) IsKnown() bool {
	for _, known := range KnownCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// KnownCategories returns the built-in categories
func KnownCategories() []Category {
	return []Category{
		CategoryRental,
		CategoryTax,
		CategoryInsurance,
		CategoryServiceFee,
		CategorySecurityDeposit,
		CategoryDeliveryFee,
		CategoryCollectionFee,
		CategoryExtras,
		CategoryExcessMileage,
		CategoryExtension,
		CategoryInitialFee,
		CategoryFines,
		CategoryOther,
	}
}

// DefaultPriority is the order in which an untargeted payment settles charges
func DefaultPriority() []Category {
	return []Category{
		CategoryInitialFee,
		CategoryExtension,
		CategoryRental,
		CategoryFines,
		CategoryOther,
	}
}

// ParseCategories converts raw names into categories, dropping blanks and
// duplicates while keeping the caller's order.
func ParseCategories(raw []string) ([]Category, error) {
	seen := make(map[Category]bool, len(raw))
	out := make([]Category, 0, len(raw))
	for _, name := range raw {
		c := Category(strings.TrimSpace(name))
		if c == "" {
			continue
		}
		if !c.IsValid() {
			return nil, ErrInvalidCategory.WithDetail(name)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// InvoiceField names an amount column of an invoice snapshot
type InvoiceField string

const (
	InvoiceFieldRentalFee        InvoiceField = "rental_fee"
	InvoiceFieldTax              InvoiceField = "tax"
	InvoiceFieldServiceFee       InvoiceField = "service_fee"
	InvoiceFieldSecurityDeposit  InvoiceField = "security_deposit"
	InvoiceFieldDeliveryFee      InvoiceField = "delivery_fee"
	InvoiceFieldCollectionFee    InvoiceField = "collection_fee"
	InvoiceFieldExtras           InvoiceField = "extras"
	InvoiceFieldInsurancePremium InvoiceField = "insurance_premium"
)

// CategoryRegistry maps categories to the invoice field that backs them.
// It is the extension point for invoice-derived charges and refund splits.
type CategoryRegistry struct {
	mu      sync.RWMutex
	fields  map[Category]InvoiceField
	ordered []Category
}

// NewCategoryRegistry creates an empty registry
func NewCategoryRegistry() *CategoryRegistry {
	return &CategoryRegistry{
		fields: make(map[Category]InvoiceField),
	}
}

// DefaultCategoryRegistry returns a registry with the standard invoice mapping
func DefaultCategoryRegistry() *CategoryRegistry {
	r := NewCategoryRegistry()
	r.Register(CategoryRental, InvoiceFieldRentalFee)
	r.Register(CategoryTax, InvoiceFieldTax)
	r.Register(CategoryServiceFee, InvoiceFieldServiceFee)
	r.Register(CategorySecurityDeposit, InvoiceFieldSecurityDeposit)
	r.Register(CategoryDeliveryFee, InvoiceFieldDeliveryFee)
	r.Register(CategoryCollectionFee, InvoiceFieldCollectionFee)
	r.Register(CategoryExtras, InvoiceFieldExtras)
	r.Register(CategoryInsurance, InvoiceFieldInsurancePremium)
	return r
}

// Register maps a category to an invoice field. Re-registering a category
// replaces its field and keeps its original position.
func (r *CategoryRegistry) Register(category Category, field InvoiceField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fields[category]; !exists {
		r.ordered = append(r.ordered, category)
	}
	r.fields[category] = field
}

// FieldFor returns the invoice field backing a category
func (r *CategoryRegistry) FieldFor(category Category) (InvoiceField, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	field, ok := r.fields[category]
	return field, ok
}

// Categories returns the registered categories in registration order
func (r *CategoryRegistry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, len(r.ordered))
	copy(out, r.ordered)
	return out
}
