package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	GBP Currency = "GBP" // British Pound (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = GBP

// MinorUnitPlaces is the number of decimal places kept for every amount
const MinorUnitPlaces int32 = 2

// Money is a value object representing monetary amounts.
// It is immutable; all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the currency code
func (m Money) Currency() Currency { return m.currency }

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Add returns the sum of both amounts.
// Returns error if currencies don't match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference of both amounts.
// Returns error if currencies don't match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Negate returns the amount with its sign flipped
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// RoundCents rounds the amount half away from zero to minor units
func (m Money) RoundCents() Money {
	return Money{amount: RoundCents(m.amount), currency: m.currency}
}

// Equals reports whether both amount and currency match
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns the amount with two decimals followed by the currency
func (m Money) String() string {
	return m.amount.StringFixed(MinorUnitPlaces) + " " + string(m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(MinorUnitPlaces),
		Currency: m.currency,
	})
}

// RoundCents rounds a raw decimal to minor units
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

// AllocateByWeights splits total across weights in proportion, in minor
// units. Each share is total*weight/sum truncated to cents. Leftover cents
// go one at a time to the largest truncation remainders, with ties broken by
// the larger weight and then by index, so the shares always sum to total.
// Non-positive weights receive zero.
func AllocateByWeights(total decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, errors.New("weights cannot be empty")
	}
	sum := decimal.Zero
	for _, w := range weights {
		if w.IsPositive() {
			sum = sum.Add(w)
		}
	}
	if !sum.IsPositive() {
		return nil, errors.New("weights must contain a positive value")
	}

	total = RoundCents(total)
	cent := decimal.New(1, -MinorUnitPlaces)
	if total.IsNegative() {
		cent = cent.Neg()
	}

	shares := make([]decimal.Decimal, len(weights))
	type remainder struct {
		index  int
		weight decimal.Decimal
		frac   decimal.Decimal
	}
	rems := make([]remainder, 0, len(weights))
	assigned := decimal.Zero
	for i, w := range weights {
		if !w.IsPositive() {
			shares[i] = decimal.Zero
			continue
		}
		exact := total.Mul(w).Div(sum)
		share := exact.Truncate(MinorUnitPlaces)
		shares[i] = share
		assigned = assigned.Add(share)
		rems = append(rems, remainder{index: i, weight: w, frac: exact.Sub(share).Abs()})
	}

	sort.SliceStable(rems, func(a, b int) bool {
		if !rems[a].frac.Equal(rems[b].frac) {
			return rems[a].frac.GreaterThan(rems[b].frac)
		}
		if !rems[a].weight.Equal(rems[b].weight) {
			return rems[a].weight.GreaterThan(rems[b].weight)
		}
		return rems[a].index < rems[b].index
	})

	leftover := total.Sub(assigned)
	for i := 0; !leftover.IsZero() && len(rems) > 0; i++ {
		r := rems[i%len(rems)]
		shares[r.index] = shares[r.index].Add(cent)
		leftover = leftover.Sub(cent)
	}

	return shares, nil
}
