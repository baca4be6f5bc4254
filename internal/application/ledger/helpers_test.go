package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/models"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	repos      appledger.Repositories
	scope      *persistence.GormTransactionScope
	tenantID   uuid.UUID
	customerID uuid.UUID
	ctx        context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	return &fixture{
		db:         db,
		repos:      persistence.NewLedgerRepositories(db),
		scope:      persistence.NewGormTransactionScope(db),
		tenantID:   uuid.New(),
		customerID: uuid.New(),
		ctx:        context.Background(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.StringFixed(2))
}

func (f *fixture) charge(t *testing.T, category ledger.Category, amount, due string, rentalID *uuid.UUID) *ledger.LedgerEntry {
	t.Helper()
	params := ledger.ChargeParams{
		CustomerID: f.customerID,
		RentalID:   rentalID,
		Category:   category,
		Amount:     dec(amount),
		EntryDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if due != "" {
		params.DueDate = day(due)
	}
	c, err := ledger.NewCharge(f.tenantID, params)
	require.NoError(t, err)
	require.NoError(t, f.repos.Entries.Create(f.ctx, c))
	return c
}

func (f *fixture) payment(t *testing.T, amount string, mutate ...func(*ledger.NewPaymentParams)) *ledger.Payment {
	t.Helper()
	params := ledger.NewPaymentParams{
		CustomerID: f.customerID,
		Amount:     dec(amount),
		Method:     "card",
	}
	for _, m := range mutate {
		m(&params)
	}
	p, err := ledger.NewPayment(f.tenantID, params)
	require.NoError(t, err)
	require.NoError(t, f.repos.Payments.Create(f.ctx, p))
	return p
}

func (f *fixture) invoice(t *testing.T, rentalID uuid.UUID, fill func(*ledger.Invoice)) *ledger.Invoice {
	t.Helper()
	inv := &ledger.Invoice{
		TenantEntity:  shared.NewTenantEntity(f.tenantID),
		RentalID:      rentalID,
		CustomerID:    f.customerID,
		InvoiceNumber: "INV-0001",
		IssuedAt:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		DueDate:       day("2024-01-20"),
	}
	fill(inv)
	require.NoError(t, f.repos.Invoices.Create(f.ctx, inv))
	return inv
}

func (f *fixture) reloadCharge(t *testing.T, id uuid.UUID) *ledger.LedgerEntry {
	t.Helper()
	c, err := f.repos.Entries.FindByID(f.ctx, f.tenantID, id)
	require.NoError(t, err)
	return c
}

func (f *fixture) reloadPayment(t *testing.T, id uuid.UUID) *ledger.Payment {
	t.Helper()
	p, err := f.repos.Payments.FindByID(f.ctx, f.tenantID, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) countPaymentRows(t *testing.T, paymentID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.LedgerEntryModel{}).
		Where("tenant_id = ? AND payment_id = ? AND type = ?", f.tenantID, paymentID, string(ledger.EntryTypePayment)).
		Count(&n).Error)
	return n
}

func (f *fixture) processor(cfg appledger.PaymentProcessorConfig) *appledger.PaymentProcessor {
	if cfg.RaceWaitDelay == 0 {
		cfg.RaceWaitDelay = 10 * time.Millisecond
	}
	if cfg.RaceTimeout == 0 {
		cfg.RaceTimeout = 2 * time.Second
	}
	if cfg.RaceMaxAttempts == 0 {
		cfg.RaceMaxAttempts = 100
	}
	return appledger.NewPaymentProcessor(f.repos, nil, cfg)
}

// recordingPublisher collects events and forwards them to handlers inline
type recordingPublisher struct {
	mu       sync.Mutex
	events   []shared.DomainEvent
	handlers []shared.EventHandler
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	p.events = append(p.events, events...)
	handlers := append([]shared.EventHandler(nil), p.handlers...)
	p.mu.Unlock()
	for _, event := range events {
		for _, h := range handlers {
			for _, et := range h.EventTypes() {
				if et == event.EventType() {
					if err := h.Handle(ctx, event); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// failingPnL rejects every posting
type failingPnL struct {
	ledger.PnLRepository
}

func (failingPnL) Create(context.Context, *ledger.PnLEntry) error {
	return assert.AnError
}
