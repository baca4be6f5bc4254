package ledger

import (
	"context"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every repository handed to fn shares one database transaction, committed
// when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the ledger repositories bound to the
// current transaction.
//
// Invoices are read-only to the engine and are not part of the scope.
type TransactionalRepositories interface {
	EntryRepo() ledger.LedgerEntryRepository
	PaymentRepo() ledger.PaymentRepository
	ApplicationRepo() ledger.PaymentApplicationRepository
	PnLRepo() ledger.PnLRepository
}

// Repositories groups the non-transactional repositories a service needs
type Repositories struct {
	Entries      ledger.LedgerEntryRepository
	Payments     ledger.PaymentRepository
	Applications ledger.PaymentApplicationRepository
	Invoices     ledger.InvoiceRepository
	PnL          ledger.PnLRepository
}

// NoOpTransactionScope runs fn against the plain repositories without a
// transaction. Intended for tests and stores without transaction support.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// EntryRepo returns the ledger entry repository
func (s *NoOpTransactionScope) EntryRepo() ledger.LedgerEntryRepository {
	return s.repos.Entries
}

// PaymentRepo returns the payment repository
func (s *NoOpTransactionScope) PaymentRepo() ledger.PaymentRepository {
	return s.repos.Payments
}

// ApplicationRepo returns the payment application repository
func (s *NoOpTransactionScope) ApplicationRepo() ledger.PaymentApplicationRepository {
	return s.repos.Applications
}

// PnLRepo returns the P&L repository
func (s *NoOpTransactionScope) PnLRepo() ledger.PnLRepository {
	return s.repos.PnL
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
