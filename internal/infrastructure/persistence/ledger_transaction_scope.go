package persistence

import (
	"context"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. If fn returns an error the
// transaction is rolled back, otherwise it is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) EntryRepo() ledger.LedgerEntryRepository {
	return NewGormLedgerEntryRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() ledger.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) ApplicationRepo() ledger.PaymentApplicationRepository {
	return NewGormPaymentApplicationRepository(r.tx)
}

func (r *gormTransactionalRepositories) PnLRepo() ledger.PnLRepository {
	return NewGormPnLRepository(r.tx)
}

// NewLedgerRepositories builds the non-transactional repository set
func NewLedgerRepositories(db *gorm.DB) appledger.Repositories {
	return appledger.Repositories{
		Entries:      NewGormLedgerEntryRepository(db),
		Payments:     NewGormPaymentRepository(db),
		Applications: NewGormPaymentApplicationRepository(db),
		Invoices:     NewGormInvoiceRepository(db),
		PnL:          NewGormPnLRepository(db),
	}
}

var (
	_ appledger.TransactionScope          = (*GormTransactionScope)(nil)
	_ appledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
