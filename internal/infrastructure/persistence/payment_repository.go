package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/models"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements ledger.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: tx}
}

func (r *GormPaymentRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.PaymentModel{}).Scopes(tenant.Scope(tenantID))
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	var model models.PaymentModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrPaymentNotFound.WithDetail(id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalRef finds a payment by provider reference, or nil
func (r *GormPaymentRepository) FindByExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*ledger.Payment, error) {
	if ref == "" {
		return nil, nil
	}
	var model models.PaymentModel
	err := r.scoped(ctx, tenantID).Where("external_ref = ?", ref).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindWithCredit returns payments holding unapplied credit, oldest first
func (r *GormPaymentRepository) FindWithCredit(ctx context.Context, tenantID, customerID uuid.UUID) ([]*ledger.Payment, error) {
	var rows []models.PaymentModel
	if err := r.scoped(ctx, tenantID).
		Where("customer_id = ?", customerID).
		Where("status IN ?", ledger.CreditStatusNames()).
		Where("remaining_amount > 0").
		Order("payment_date ASC, created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// FindByCustomer returns every payment of a customer, oldest first
func (r *GormPaymentRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*ledger.Payment, error) {
	var rows []models.PaymentModel
	if err := r.scoped(ctx, tenantID).
		Where("customer_id = ?", customerID).
		Order("payment_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// FindByIDs returns the payments that exist among ids
func (r *GormPaymentRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Payment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.PaymentModel
	if err := r.scoped(ctx, tenantID).
		Where("id IN ?", ids).
		Order("payment_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *ledger.Payment) error {
	if payment.TenantID == uuid.Nil {
		return tenant.ErrTenantIDRequired
	}
	if err := r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists.WithDetail(payment.ID.String())
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *ledger.Payment) error {
	result := r.scoped(ctx, payment.TenantID).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]any{
			"status":           string(payment.Status),
			"remaining_amount": payment.RemainingAmount,
			"refund_amount":    payment.RefundAmount,
			"refund_status":    string(payment.RefundStatus),
			"version":          payment.Version + 1,
			"updated_at":       payment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithDetail(fmt.Sprintf("payment %s version %d", payment.ID, payment.Version))
	}
	payment.Version++
	return nil
}

func toPayments(rows []models.PaymentModel) []*ledger.Payment {
	out := make([]*ledger.Payment, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormPaymentRepository implements the interface
var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
