package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/models"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements ledger.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindLatestByRental returns the newest invoice of a rental, or nil
func (r *GormInvoiceRepository) FindLatestByRental(ctx context.Context, tenantID, rentalID uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("rental_id = ?", rentalID).
		Order("issued_at DESC, created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts an invoice snapshot
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	if invoice.TenantID == uuid.Nil {
		return tenant.ErrTenantIDRequired
	}
	if err := r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Ensure GormInvoiceRepository implements the interface
var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
