package persistence

import (
	"context"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/models"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPnLRepository implements ledger.PnLRepository using GORM
type GormPnLRepository struct {
	db *gorm.DB
}

// NewGormPnLRepository creates a new GormPnLRepository
func NewGormPnLRepository(db *gorm.DB) *GormPnLRepository {
	return &GormPnLRepository{db: db}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormPnLRepository) WithTx(tx *gorm.DB) *GormPnLRepository {
	return &GormPnLRepository{db: tx}
}

// Create inserts a posting, ignoring one whose reference is already booked
func (r *GormPnLRepository) Create(ctx context.Context, entry *ledger.PnLEntry) error {
	if entry.TenantID == uuid.Nil {
		return tenant.ErrTenantIDRequired
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "reference"}},
			DoNothing: true,
		}).
		Create(models.PnLEntryModelFromDomain(entry)).Error
	if err != nil {
		return fmt.Errorf("insert pnl entry: %w", err)
	}
	return nil
}

// FindByRental returns a rental's postings by date
func (r *GormPnLRepository) FindByRental(ctx context.Context, tenantID, rentalID uuid.UUID) ([]*ledger.PnLEntry, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("rental_id = ?", rentalID))
}

// FindByPayment returns the postings derived from a payment
func (r *GormPnLRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*ledger.PnLEntry, error) {
	return r.find(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("payment_id = ?", paymentID))
}

func (r *GormPnLRepository) find(query *gorm.DB) ([]*ledger.PnLEntry, error) {
	var rows []models.PnLEntryModel
	if err := query.Order("entry_date ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.PnLEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Ensure GormPnLRepository implements the interface
var _ ledger.PnLRepository = (*GormPnLRepository)(nil)
