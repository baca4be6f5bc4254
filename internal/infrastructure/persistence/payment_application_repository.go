package persistence

import (
	"context"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared/valueobject"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/models"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentApplicationRepository implements ledger.PaymentApplicationRepository
type GormPaymentApplicationRepository struct {
	db *gorm.DB
}

// NewGormPaymentApplicationRepository creates a new GormPaymentApplicationRepository
func NewGormPaymentApplicationRepository(db *gorm.DB) *GormPaymentApplicationRepository {
	return &GormPaymentApplicationRepository{db: db}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormPaymentApplicationRepository) WithTx(tx *gorm.DB) *GormPaymentApplicationRepository {
	return &GormPaymentApplicationRepository{db: tx}
}

func (r *GormPaymentApplicationRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.PaymentApplicationModel{}).Scopes(tenant.Scope(tenantID))
}

// Create inserts an application
func (r *GormPaymentApplicationRepository) Create(ctx context.Context, app *ledger.PaymentApplication) error {
	if app.TenantID == uuid.Nil {
		return tenant.ErrTenantIDRequired
	}
	if err := r.db.WithContext(ctx).Create(models.PaymentApplicationModelFromDomain(app)).Error; err != nil {
		return fmt.Errorf("insert payment application: %w", err)
	}
	return nil
}

// FindByPayment returns the applications of a payment in creation order
func (r *GormPaymentApplicationRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*ledger.PaymentApplication, error) {
	return r.find(r.scoped(ctx, tenantID).Where("payment_id = ?", paymentID))
}

// FindByCharge returns the applications against a charge
func (r *GormPaymentApplicationRepository) FindByCharge(ctx context.Context, tenantID, chargeID uuid.UUID) ([]*ledger.PaymentApplication, error) {
	return r.find(r.scoped(ctx, tenantID).Where("charge_entry_id = ?", chargeID))
}

func (r *GormPaymentApplicationRepository) find(query *gorm.DB) ([]*ledger.PaymentApplication, error) {
	var rows []models.PaymentApplicationModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.PaymentApplication, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// SumByPayment totals what a payment has applied so far
func (r *GormPaymentApplicationRepository) SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.scoped(ctx, tenantID).
		Select("COALESCE(SUM(amount_applied), 0)").
		Where("payment_id = ?", paymentID).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return valueobject.RoundCents(total), nil
}

// SumByCharges totals applications per charge
func (r *GormPaymentApplicationRepository) SumByCharges(ctx context.Context, tenantID uuid.UUID, chargeIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(chargeIDs))
	if len(chargeIDs) == 0 {
		return out, nil
	}
	var rows []chargeTotal
	if err := r.scoped(ctx, tenantID).
		Select("charge_entry_id AS charge_id, COALESCE(SUM(amount_applied), 0) AS total").
		Where("charge_entry_id IN ?", chargeIDs).
		Group("charge_entry_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ChargeID] = valueobject.RoundCents(row.Total)
	}
	return out, nil
}

// DeleteByCharge removes every application against a charge
func (r *GormPaymentApplicationRepository) DeleteByCharge(ctx context.Context, tenantID, chargeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("charge_entry_id = ?", chargeID).
		Delete(&models.PaymentApplicationModel{}).Error
}

// Ensure GormPaymentApplicationRepository implements the interface
var _ ledger.PaymentApplicationRepository = (*GormPaymentApplicationRepository)(nil)
