package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResolveRequest identifies the charges a payment may settle in one category
type ResolveRequest struct {
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	RentalID   *uuid.UUID
	Category   ledger.Category
	// AllowFallback enables invoice materialization. Only targeted
	// payments set it.
	AllowFallback bool
}

// ChargeResolver finds the outstanding charges of a category and, for
// targeted rental payments, derives a missing charge from the rental's
// latest invoice.
type ChargeResolver struct {
	entries  ledger.LedgerEntryRepository
	invoices ledger.InvoiceRepository
	registry *ledger.CategoryRegistry
	logger   *zap.Logger
}

// NewChargeResolver creates a ChargeResolver. A nil registry uses the
// default invoice mapping.
func NewChargeResolver(
	entries ledger.LedgerEntryRepository,
	invoices ledger.InvoiceRepository,
	registry *ledger.CategoryRegistry,
	logger *zap.Logger,
) *ChargeResolver {
	if registry == nil {
		registry = ledger.DefaultCategoryRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargeResolver{
		entries:  entries,
		invoices: invoices,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the category registry used for invoice lookups
func (r *ChargeResolver) Registry() *ledger.CategoryRegistry {
	return r.registry
}

// ResolveCharges returns the outstanding charges of req.Category in FIFO order
func (r *ChargeResolver) ResolveCharges(ctx context.Context, req ResolveRequest) ([]*ledger.LedgerEntry, error) {
	filter := ledger.ChargeFilter{
		CustomerID: &req.CustomerID,
		RentalID:   req.RentalID,
		Category:   req.Category,
	}
	charges, err := r.entries.FindOutstandingCharges(ctx, req.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find outstanding %s charges: %w", req.Category, err)
	}
	if len(charges) > 0 || !req.AllowFallback || req.RentalID == nil {
		return charges, nil
	}

	// A settled charge means the category was billed and paid, not missing.
	exists, err := r.entries.HasCharges(ctx, req.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing %s charges: %w", req.Category, err)
	}
	if exists {
		return charges, nil
	}

	charge, err := r.materialize(ctx, req)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return charges, nil
	}
	return []*ledger.LedgerEntry{charge}, nil
}

// materialize books the invoiced amount of a category as a charge. It
// returns nil when the invoice has nothing for the category.
func (r *ChargeResolver) materialize(ctx context.Context, req ResolveRequest) (*ledger.LedgerEntry, error) {
	invoice, err := r.invoices.FindLatestByRental(ctx, req.TenantID, *req.RentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if invoice == nil {
		return nil, nil
	}
	amount, mapped := invoice.AmountFor(r.registry, req.Category)
	if !mapped || !amount.IsPositive() {
		return nil, nil
	}

	charge, err := ledger.NewCharge(req.TenantID, ledger.ChargeParams{
		CustomerID: req.CustomerID,
		RentalID:   req.RentalID,
		Category:   req.Category,
		Amount:     amount,
		EntryDate:  invoice.IssuedAt,
		DueDate:    invoice.DueDate,
		Reference:  ledger.InvoiceReference(invoice.ID, req.Category),
	})
	if err != nil {
		return nil, err
	}

	if err := r.entries.Create(ctx, charge); err != nil {
		if !errors.Is(err, ledger.ErrDuplicateEntry) {
			return nil, fmt.Errorf("failed to materialize %s charge: %w", req.Category, err)
		}
		// Another resolver got there first
		r.logger.Debug("invoice charge already materialized",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("rental_id", req.RentalID.String()),
			zap.String("category", req.Category.String()),
		)
		charges, err := r.entries.FindOutstandingCharges(ctx, req.TenantID, ledger.ChargeFilter{
			CustomerID: &req.CustomerID,
			RentalID:   req.RentalID,
			Category:   req.Category,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to re-read materialized charge: %w", err)
		}
		if len(charges) == 0 {
			return nil, nil
		}
		return charges[0], nil
	}

	r.logger.Info("materialized charge from invoice",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("category", req.Category.String()),
		zap.String("amount", charge.Amount.StringFixed(2)),
	)
	return charge, nil
}

// Lookup binds the resolver to one payment's scope for the allocator
func (r *ChargeResolver) Lookup(tenantID, customerID uuid.UUID, rentalID *uuid.UUID, allowFallback bool) ledger.ChargeLookup {
	return ledger.ChargeLookupFunc(func(ctx context.Context, category ledger.Category) ([]*ledger.LedgerEntry, error) {
		return r.ResolveCharges(ctx, ResolveRequest{
			TenantID:      tenantID,
			CustomerID:    customerID,
			RentalID:      rentalID,
			Category:      category,
			AllowFallback: allowFallback,
		})
	})
}

// withEntries returns a copy of the resolver reading through entries
func (r *ChargeResolver) withEntries(entries ledger.LedgerEntryRepository) *ChargeResolver {
	clone := *r
	clone.entries = entries
	return &clone
}
