package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared/valueobject"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/models"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fifoOrder sorts charges by due date with undated charges last, then by
// entry date and id
const fifoOrder = "due_date IS NULL, due_date ASC, entry_date ASC, id ASC"

// GormLedgerEntryRepository implements ledger.LedgerEntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormLedgerEntryRepository) WithTx(tx *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: tx}
}

func (r *GormLedgerEntryRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Scopes(tenant.Scope(tenantID))
}

// FindByID finds an entry by ID
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.LedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrChargeNotFound.WithDetail(id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOutstandingCharges returns charges with money still owed, FIFO ordered
func (r *GormLedgerEntryRepository) FindOutstandingCharges(ctx context.Context, tenantID uuid.UUID, filter ledger.ChargeFilter) ([]*ledger.LedgerEntry, error) {
	query := r.chargeQuery(ctx, tenantID, filter).Where("remaining_amount > 0")

	var rows []models.LedgerEntryModel
	if err := query.Order(fifoOrder).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

// HasCharges reports whether any charge matches filter
func (r *GormLedgerEntryRepository) HasCharges(ctx context.Context, tenantID uuid.UUID, filter ledger.ChargeFilter) (bool, error) {
	var count int64
	if err := r.chargeQuery(ctx, tenantID, filter).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormLedgerEntryRepository) chargeQuery(ctx context.Context, tenantID uuid.UUID, filter ledger.ChargeFilter) *gorm.DB {
	query := r.scoped(ctx, tenantID).Where("type = ?", string(ledger.EntryTypeCharge))
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.RentalID != nil {
		query = query.Where("rental_id = ?", *filter.RentalID)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category.String())
	}
	return query
}

// FindByRental returns every entry of a rental
func (r *GormLedgerEntryRepository) FindByRental(ctx context.Context, tenantID, rentalID uuid.UUID) ([]*ledger.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.scoped(ctx, tenantID).
		Where("rental_id = ?", rentalID).
		Order("entry_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

// FindByPayment returns the entries that reference a payment
func (r *GormLedgerEntryRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*ledger.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.scoped(ctx, tenantID).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

// FindPaymentEntry returns the Payment row of a payment, or nil
func (r *GormLedgerEntryRepository) FindPaymentEntry(ctx context.Context, tenantID, paymentID uuid.UUID) (*ledger.LedgerEntry, error) {
	var model models.LedgerEntryModel
	err := r.scoped(ctx, tenantID).
		Where("payment_id = ? AND type = ?", paymentID, string(ledger.EntryTypePayment)).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCharges returns every charge of a customer
func (r *GormLedgerEntryRepository) FindCharges(ctx context.Context, tenantID, customerID uuid.UUID) ([]*ledger.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.chargeQuery(ctx, tenantID, ledger.ChargeFilter{CustomerID: &customerID}).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

// Create inserts an entry
func (r *GormLedgerEntryRepository) Create(ctx context.Context, entry *ledger.LedgerEntry) error {
	if entry.TenantID == uuid.Nil {
		return tenant.ErrTenantIDRequired
	}
	model := models.LedgerEntryModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return ledger.ErrDuplicateEntry.WithDetail(entry.Reference)
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// DecrementRemaining lowers a charge's remaining amount in a single guarded
// UPDATE. Both sides are rounded to cents so that drivers storing decimals
// as floating point compare exactly.
func (r *GormLedgerEntryRepository) DecrementRemaining(ctx context.Context, tenantID, chargeID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = valueobject.RoundCents(amount)
	if !amount.IsPositive() {
		return decimal.Zero, ledger.ErrInvalidAmount
	}
	result := r.scoped(ctx, tenantID).
		Where("id = ? AND type = ?", chargeID, string(ledger.EntryTypeCharge)).
		Where("ROUND(remaining_amount, 2) >= CAST(? AS DECIMAL(18,4))", amount).
		UpdateColumns(map[string]any{
			"remaining_amount": gorm.Expr("ROUND(remaining_amount - ?, 2)", amount),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return decimal.Zero, fmt.Errorf("decrement charge %s: %w", chargeID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the charge vanished or someone else got there first.
		if _, err := r.FindByID(ctx, tenantID, chargeID); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, ledger.ErrInsufficientRemaining.WithDetail(chargeID.String())
	}

	var remaining decimal.Decimal
	if err := r.scoped(ctx, tenantID).
		Where("id = ?", chargeID).
		Select("remaining_amount").
		Scan(&remaining).Error; err != nil {
		return decimal.Zero, err
	}
	return valueobject.RoundCents(remaining), nil
}

// ReclaimPaymentEntry moves the gate row's update time forward only while
// it is older than staleBefore, so a second reclaimer matches no row
func (r *GormLedgerEntryRepository) ReclaimPaymentEntry(ctx context.Context, tenantID, entryID uuid.UUID, staleBefore time.Time) (bool, error) {
	result := r.scoped(ctx, tenantID).
		Where("id = ? AND type = ? AND updated_at < ?", entryID, string(ledger.EntryTypePayment), staleBefore).
		UpdateColumn("updated_at", time.Now())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete removes an entry
func (r *GormLedgerEntryRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		Delete(&models.LedgerEntryModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrChargeNotFound.WithDetail(id.String())
	}
	return nil
}

type categoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// SumRefundedByCategory totals refunds posted against a payment per
// category, as positive amounts
func (r *GormLedgerEntryRepository) SumRefundedByCategory(ctx context.Context, tenantID, paymentID uuid.UUID) (map[ledger.Category]decimal.Decimal, error) {
	var rows []categoryTotal
	if err := r.scoped(ctx, tenantID).
		Select("category, COALESCE(SUM(-amount), 0) AS total").
		Where("payment_id = ? AND type = ?", paymentID, string(ledger.EntryTypeRefund)).
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[ledger.Category]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[ledger.Category(row.Category)] = valueobject.RoundCents(row.Total)
	}
	return out, nil
}

type chargeTotal struct {
	ChargeID uuid.UUID
	Total    decimal.Decimal
}

// SumDeductionsByCharges totals deposit deductions per target charge
func (r *GormLedgerEntryRepository) SumDeductionsByCharges(ctx context.Context, tenantID uuid.UUID, chargeIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(chargeIDs))
	if len(chargeIDs) == 0 {
		return out, nil
	}
	var rows []chargeTotal
	if err := r.scoped(ctx, tenantID).
		Select("target_charge_id AS charge_id, COALESCE(SUM(-amount), 0) AS total").
		Where("type = ? AND target_charge_id IN ?", string(ledger.EntryTypeRefund), chargeIDs).
		Group("target_charge_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ChargeID] = valueobject.RoundCents(row.Total)
	}
	return out, nil
}

func toLedgerEntries(rows []models.LedgerEntryModel) []*ledger.LedgerEntry {
	out := make([]*ledger.LedgerEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormLedgerEntryRepository implements the interface
var _ ledger.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
