package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeLookup returns the outstanding charges of one category in the order
// they must be settled
type ChargeLookup interface {
	OutstandingCharges(ctx context.Context, category Category) ([]*LedgerEntry, error)
}

// ChargeLookupFunc adapts a function to ChargeLookup
type ChargeLookupFunc func(ctx context.Context, category Category) ([]*LedgerEntry, error)

// OutstandingCharges calls f
func (f ChargeLookupFunc) OutstandingCharges(ctx context.Context, category Category) ([]*LedgerEntry, error) {
	return f(ctx, category)
}

// ChargeApplier persists one step of an allocation. It returns the amount
// that actually left the charge's balance. A non-nil error together with a
// positive amount means the balance moved but a follow-up posting failed.
type ChargeApplier interface {
	ApplyToCharge(ctx context.Context, charge *LedgerEntry, amount decimal.Decimal) (decimal.Decimal, error)
}

// ChargeApplierFunc adapts a function to ChargeApplier
type ChargeApplierFunc func(ctx context.Context, charge *LedgerEntry, amount decimal.Decimal) (decimal.Decimal, error)

// ApplyToCharge calls f
func (f ChargeApplierFunc) ApplyToCharge(ctx context.Context, charge *LedgerEntry, amount decimal.Decimal) (decimal.Decimal, error) {
	return f(ctx, charge, amount)
}

// Application is one (charge, amount) step of an allocation
type Application struct {
	ChargeID uuid.UUID
	Category Category
	Amount   decimal.Decimal
}

// AllocationFailure records a charge or category the walk had to skip
type AllocationFailure struct {
	ChargeID uuid.UUID // uuid.Nil when the category lookup itself failed
	Category Category
	Amount   decimal.Decimal // amount that was attempted
	Applied  bool            // true if the balance moved before the failure
	Err      error
}

// AllocationResult is the outcome of one allocation walk
type AllocationResult struct {
	Applications         []Application
	TotalApplied         decimal.Decimal
	Remaining            decimal.Decimal
	FullyAllocated       bool
	ChargesFullyPaid     []uuid.UUID
	ChargesPartiallyPaid []uuid.UUID
	Failures             []AllocationFailure
}

// HasFailures reports whether any step failed
func (r *AllocationResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// Allocator settles outstanding charges first-in-first-out within each
// category, walking categories in priority order
type Allocator struct {
	defaultPriority []Category
}

// AllocatorOption configures an Allocator
type AllocatorOption func(*Allocator)

// WithDefaultPriority overrides the category order used for untargeted payments
func WithDefaultPriority(priority []Category) AllocatorOption {
	return func(a *Allocator) {
		if len(priority) > 0 {
			a.defaultPriority = append([]Category(nil), priority...)
		}
	}
}

// NewAllocator creates an Allocator
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{defaultPriority: DefaultPriority()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultPriority returns the configured untargeted order
func (a *Allocator) DefaultPriority() []Category {
	return append([]Category(nil), a.defaultPriority...)
}

// PriorityFor returns targets verbatim when given, otherwise the default order
func (a *Allocator) PriorityFor(targets []Category) []Category {
	if len(targets) > 0 {
		return targets
	}
	return a.DefaultPriority()
}

// Allocate walks priority in order and, within each category, the charges
// returned by lookup, applying min(available, remaining) to each until the
// available amount runs out. A failed step is recorded and the walk moves on.
func (a *Allocator) Allocate(ctx context.Context, amount decimal.Decimal, priority []Category, lookup ChargeLookup, applier ChargeApplier) (*AllocationResult, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	result := &AllocationResult{
		Applications:         make([]Application, 0),
		TotalApplied:         decimal.Zero,
		Remaining:            amount,
		ChargesFullyPaid:     make([]uuid.UUID, 0),
		ChargesPartiallyPaid: make([]uuid.UUID, 0),
		Failures:             make([]AllocationFailure, 0),
	}

	available := amount
	for _, category := range priority {
		if !available.IsPositive() {
			break
		}
		charges, err := lookup.OutstandingCharges(ctx, category)
		if err != nil {
			result.Failures = append(result.Failures, AllocationFailure{
				Category: category,
				Amount:   available,
				Err:      err,
			})
			continue
		}

		for _, charge := range charges {
			if !available.IsPositive() {
				break
			}
			if !charge.IsOutstanding() {
				continue
			}

			outstanding := charge.RemainingAmount
			want := decimal.Min(available, outstanding)
			applied, err := applier.ApplyToCharge(ctx, charge, want)
			if applied.IsPositive() {
				result.Applications = append(result.Applications, Application{
					ChargeID: charge.ID,
					Category: category,
					Amount:   applied,
				})
				result.TotalApplied = result.TotalApplied.Add(applied)
				available = available.Sub(applied)
				if applied.GreaterThanOrEqual(outstanding) {
					result.ChargesFullyPaid = append(result.ChargesFullyPaid, charge.ID)
				} else {
					result.ChargesPartiallyPaid = append(result.ChargesPartiallyPaid, charge.ID)
				}
			}
			if err != nil {
				result.Failures = append(result.Failures, AllocationFailure{
					ChargeID: charge.ID,
					Category: category,
					Amount:   want,
					Applied:  applied.IsPositive(),
					Err:      err,
				})
			}
		}
	}

	result.Remaining = available
	result.FullyAllocated = available.IsZero()
	return result, nil
}
