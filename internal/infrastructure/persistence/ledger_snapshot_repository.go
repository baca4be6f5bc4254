package persistence

import (
	"context"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerSnapshotRepository aggregates ledger positions for the
// periodic ledger gauges
type GormLedgerSnapshotRepository struct {
	db *gorm.DB
}

// NewGormLedgerSnapshotRepository creates a new GormLedgerSnapshotRepository
func NewGormLedgerSnapshotRepository(db *gorm.DB) *GormLedgerSnapshotRepository {
	return &GormLedgerSnapshotRepository{db: db}
}

var _ telemetry.LedgerSnapshotProvider = (*GormLedgerSnapshotRepository)(nil)

// ActiveTenantIDs returns tenants with at least one ledger entry
func (r *GormLedgerSnapshotRepository) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Raw("SELECT DISTINCT tenant_id FROM ledger_entries").
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger tenants: %w", err)
	}
	return ids, nil
}

// ActiveCustomerIDs returns the customers of a tenant that have charges or
// payments, ordered by id
func (r *GormLedgerSnapshotRepository) ActiveCustomerIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Raw(`SELECT customer_id FROM ledger_entries WHERE tenant_id = ?
			UNION
			SELECT customer_id FROM payments WHERE tenant_id = ?
			ORDER BY customer_id`, tenantID, tenantID).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger customers: %w", err)
	}
	return ids, nil
}

// Snapshot sums open charges and unapplied payment money for a tenant
func (r *GormLedgerSnapshotRepository) Snapshot(ctx context.Context, tenantID uuid.UUID) (telemetry.LedgerSnapshot, error) {
	var charges struct {
		Outstanding decimal.NullDecimal
		Open        int64
	}
	err := r.db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(remaining_amount), 0) AS outstanding, COUNT(*) AS open
			FROM ledger_entries
			WHERE tenant_id = ? AND type = ? AND remaining_amount > 0`,
			tenantID, string(ledger.EntryTypeCharge)).
		Scan(&charges).Error
	if err != nil {
		return telemetry.LedgerSnapshot{}, fmt.Errorf("failed to sum open charges: %w", err)
	}

	var payments struct {
		Credit  decimal.NullDecimal
		Pending int64
	}
	err = r.db.WithContext(ctx).
		Raw(`SELECT
				COALESCE(SUM(CASE WHEN status IN ? THEN remaining_amount ELSE 0 END), 0) AS credit,
				COUNT(CASE WHEN status = ? THEN 1 END) AS pending
			FROM payments
			WHERE tenant_id = ?`,
			ledger.CreditStatusNames(), string(ledger.PaymentStatusPending), tenantID).
		Scan(&payments).Error
	if err != nil {
		return telemetry.LedgerSnapshot{}, fmt.Errorf("failed to sum payment credit: %w", err)
	}

	return telemetry.LedgerSnapshot{
		OutstandingCharges: charges.Outstanding.Decimal,
		OpenCharges:        charges.Open,
		UnappliedCredit:    payments.Credit.Decimal,
		PendingPayments:    payments.Pending,
	}, nil
}
