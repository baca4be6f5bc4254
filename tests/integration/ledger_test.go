package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/cache"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/config"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/event"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ledgerStack is the application layer wired over a real database
type ledgerStack struct {
	db       *TestDB
	caches   *cache.Factory
	bus      *event.InMemoryEventBus
	ledger   *appledger.LedgerService
	charges  *appledger.ChargeService
	credit   *appledger.CreditAllocator
	checker  *appledger.ConsistencyChecker
	repos    appledger.Repositories
	tenantID uuid.UUID
	ctx      context.Context
}

func newLedgerStack(t *testing.T, db *TestDB, redisCfg config.RedisConfig) *ledgerStack {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	caches, err := cache.NewFactory(ctx, redisCfg, cache.WithLogger(log), cache.WithInMemoryFallback(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = caches.Close() })

	repos := persistence.NewLedgerRepositories(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)
	bus := event.NewInMemoryEventBus(log)
	allocator := ledger.NewAllocator()
	registry := ledger.DefaultCategoryRegistry()

	resolver := appledger.NewChargeResolver(repos.Entries, repos.Invoices, registry, log)
	processor := appledger.NewPaymentProcessor(repos, resolver, appledger.PaymentProcessorConfig{
		Logger:          log,
		Publisher:       bus,
		Allocator:       allocator,
		RaceWaitDelay:   20 * time.Millisecond,
		RaceMaxAttempts: 100,
		RaceTimeout:     5 * time.Second,
	})
	refunds := appledger.NewRefundProcessor(repos, scope, appledger.RefundProcessorConfig{
		Logger:    log,
		Publisher: bus,
		Registry:  registry,
		Cache:     caches.RefundedCache(),
		CacheTTL:  time.Minute,
		Currency:  "gbp",
	})
	credit := appledger.NewCreditAllocator(repos, scope, allocator, log)

	return &ledgerStack{
		db:       db,
		caches:   caches,
		bus:      bus,
		ledger:   appledger.NewLedgerService(repos, processor, refunds, bus, log),
		charges:  appledger.NewChargeService(repos, scope, bus, log),
		credit:   credit,
		checker:  appledger.NewConsistencyChecker(repos, log),
		repos:    repos,
		tenantID: uuid.New(),
		ctx:      ctx,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.StringFixed(2))
}

func (s *ledgerStack) charge(t *testing.T, customerID uuid.UUID, rentalID *uuid.UUID, category ledger.Category, amount string, due time.Time) *ledger.LedgerEntry {
	t.Helper()
	c, err := s.charges.CreateCharge(s.ctx, s.tenantID, appledger.CreateChargeRequest{
		CustomerID: customerID,
		RentalID:   rentalID,
		Category:   category,
		Amount:     dec(amount),
		EntryDate:  due.AddDate(0, 0, -7),
		DueDate:    &due,
	})
	require.NoError(t, err)
	return c
}

func TestLedger_AllocationAndRefund(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := NewSharedTestDB(t)
	db.CleanTables()
	s := newLedgerStack(t, db, config.RedisConfig{})
	customerID, rentalID := uuid.New(), uuid.New()
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rent := s.charge(t, customerID, &rentalID, ledger.CategoryRental, "300.00", due)
	tax := s.charge(t, customerID, &rentalID, ledger.CategoryTax, "60.00", due.AddDate(0, 0, 1))

	recorded, err := s.ledger.RecordPayment(s.ctx, s.tenantID, ledger.NewPaymentParams{
		CustomerID: customerID,
		RentalID:   &rentalID,
		Amount:     dec("330.00"),
		Method:     "card",
	}, true)
	require.NoError(t, err)
	require.NotNil(t, recorded.Allocation)
	assertMoney(t, "330.00", recorded.Allocation.Allocated)
	assert.Equal(t, ledger.PaymentStatusApplied, recorded.Allocation.Status)

	stored, err := s.repos.Entries.FindByID(s.ctx, s.tenantID, rent.ID)
	require.NoError(t, err)
	assertMoney(t, "0", stored.RemainingAmount)
	stored, err = s.repos.Entries.FindByID(s.ctx, s.tenantID, tax.ID)
	require.NoError(t, err)
	assertMoney(t, "30.00", stored.RemainingAmount)

	assert.Equal(t, int64(1), db.Count("ledger_entries", "payment_id = ? AND type = ?", recorded.Payment.ID, "Payment"))
	assert.Equal(t, int64(2), db.Count("payment_applications", "payment_id = ?", recorded.Payment.ID))
	assert.Equal(t, int64(2), db.Count("pnl_entries", "payment_id = ?", recorded.Payment.ID))

	t.Run("reapplying is a no-op", func(t *testing.T) {
		again, err := s.ledger.ApplyPayment(s.ctx, s.tenantID, recorded.Payment.ID, nil)
		require.NoError(t, err)
		assertMoney(t, "330.00", again.Allocated)
		assert.Equal(t, int64(2), db.Count("payment_applications", "payment_id = ?", recorded.Payment.ID))
	})

	t.Run("refund posts once per key", func(t *testing.T) {
		req := appledger.RefundRequest{
			TenantID:       s.tenantID,
			PaymentID:      recorded.Payment.ID,
			Amount:         dec("100.00"),
			Reason:         "returned early",
			IdempotencyKey: "refund-it-1",
		}
		first, err := s.ledger.Refund(s.ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ledger.PaymentStatusPartialRefund, first.Status)

		total := decimal.Zero
		for _, share := range first.Shares {
			total = total.Add(share.Amount)
		}
		assertMoney(t, "100.00", total)

		replay, err := s.ledger.Refund(s.ctx, req)
		require.NoError(t, err)
		assert.True(t, replay.Replayed)

		detail, err := s.ledger.GetPayment(s.ctx, s.tenantID, recorded.Payment.ID)
		require.NoError(t, err)
		assertMoney(t, "100.00", detail.Payment.RefundAmount)

		_, err = s.ledger.Refund(s.ctx, appledger.RefundRequest{
			TenantID:  s.tenantID,
			PaymentID: recorded.Payment.ID,
			Amount:    dec("250.00"),
		})
		assert.ErrorIs(t, err, ledger.ErrRefundExceedsPayment)
	})

	t.Run("consistency holds", func(t *testing.T) {
		report, err := s.checker.Check(s.ctx, s.tenantID, customerID, false)
		require.NoError(t, err)
		assert.True(t, report.Consistent(), "%+v", report)
	})
}

func TestLedger_InvoiceFallbackAndRefundSplit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := NewSharedTestDB(t)
	db.CleanTables()
	s := newLedgerStack(t, db, config.RedisConfig{})
	customerID, rentalID := uuid.New(), uuid.New()
	issued := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.repos.Invoices.Create(s.ctx, &ledger.Invoice{
		TenantEntity:    shared.NewTenantEntity(s.tenantID),
		RentalID:        rentalID,
		CustomerID:      customerID,
		InvoiceNumber:   "INV-IT-1",
		RentalFee:       dec("300.00"),
		Tax:             dec("30.00"),
		SecurityDeposit: dec("100.00"),
		IssuedAt:        issued,
		DueDate:         &due,
	}))

	invoice, err := s.repos.Invoices.FindLatestByRental(s.ctx, s.tenantID, rentalID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	require.NotNil(t, invoice.DueDate)
	assert.True(t, due.Equal(*invoice.DueDate))

	recorded, err := s.ledger.RecordPayment(s.ctx, s.tenantID, ledger.NewPaymentParams{
		CustomerID:       customerID,
		RentalID:         &rentalID,
		Amount:           dec("430.00"),
		Method:           "card",
		TargetCategories: []ledger.Category{ledger.CategoryRental, ledger.CategoryTax, ledger.CategorySecurityDeposit},
	}, true)
	require.NoError(t, err)
	assertMoney(t, "430.00", recorded.Allocation.Allocated)
	assert.Equal(t, ledger.PaymentStatusApplied, recorded.Allocation.Status)

	t.Run("charges carry the invoice due date", func(t *testing.T) {
		entries, err := s.repos.Entries.FindByRental(s.ctx, s.tenantID, rentalID)
		require.NoError(t, err)
		charges := 0
		for _, e := range entries {
			if !e.IsCharge() {
				continue
			}
			charges++
			require.NotNil(t, e.DueDate, "%s charge", e.Category)
			assert.True(t, due.Equal(*e.DueDate))
			assertMoney(t, "0", e.RemainingAmount)
		}
		assert.Equal(t, 3, charges)

		pnl, err := s.repos.PnL.FindByPayment(s.ctx, s.tenantID, recorded.Payment.ID)
		require.NoError(t, err)
		require.Len(t, pnl, 3)
		for _, p := range pnl {
			assert.True(t, due.Equal(p.EntryDate), "%s revenue dated %s", p.Category, p.EntryDate)
		}
	})

	t.Run("refund splits by invoice line", func(t *testing.T) {
		result, err := s.ledger.Refund(s.ctx, appledger.RefundRequest{
			TenantID:  s.tenantID,
			PaymentID: recorded.Payment.ID,
			Amount:    dec("43.00"),
			Reason:    "early return",
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.PaymentStatusPartialRefund, result.Status)

		refunded, err := s.repos.Entries.SumRefundedByCategory(s.ctx, s.tenantID, recorded.Payment.ID)
		require.NoError(t, err)
		assertMoney(t, "30.00", refunded[ledger.CategoryRental])
		assertMoney(t, "3.00", refunded[ledger.CategoryTax])
		assertMoney(t, "10.00", refunded[ledger.CategorySecurityDeposit])
		assert.Equal(t, int64(3), db.Count("ledger_entries", "payment_id = ? AND type = ?", recorded.Payment.ID, "Refund"))
	})

	t.Run("consistency holds", func(t *testing.T) {
		report, err := s.checker.Check(s.ctx, s.tenantID, customerID, false)
		require.NoError(t, err)
		assert.True(t, report.Consistent(), "%+v", report)
	})
}

func TestLedger_ConcurrentApply(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := NewSharedTestDB(t)
	db.CleanTables()
	s := newLedgerStack(t, db, config.RedisConfig{})
	customerID := uuid.New()
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s.charge(t, customerID, nil, ledger.CategoryRental, "100.00", due)
	s.charge(t, customerID, nil, ledger.CategoryRental, "100.00", due.AddDate(0, 0, 7))

	recorded, err := s.ledger.RecordPayment(s.ctx, s.tenantID, ledger.NewPaymentParams{
		CustomerID: customerID,
		Amount:     dec("150.00"),
	}, false)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*appledger.ProcessResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ledger.ApplyPayment(s.ctx, s.tenantID, recorded.Payment.ID, nil)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assertMoney(t, "150.00", results[i].Allocated)
	}
	assert.Equal(t, int64(1), db.Count("ledger_entries", "payment_id = ? AND type = ?", recorded.Payment.ID, "Payment"))
	assert.Equal(t, int64(2), db.Count("payment_applications", "payment_id = ?", recorded.Payment.ID))

	balance, err := s.ledger.CustomerBalance(s.ctx, s.tenantID, customerID)
	require.NoError(t, err)
	assertMoney(t, "50.00", balance.Outstanding)
}

func TestLedger_CreditSweepOnCharge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := NewSharedTestDB(t)
	db.CleanTables()
	s := newLedgerStack(t, db, StartRedis(t))
	require.True(t, s.caches.UsesRedis())

	sweep := event.NewIdempotentHandler(
		appledger.NewCreditSweepHandler(s.credit, zap.NewNop()),
		s.caches.IdempotencyStore(),
		zap.NewNop(),
	)
	s.bus.Subscribe(sweep)
	customerID := uuid.New()

	recorded, err := s.ledger.RecordPayment(s.ctx, s.tenantID, ledger.NewPaymentParams{
		CustomerID: customerID,
		Amount:     dec("80.00"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentStatusCredit, recorded.Allocation.Status)

	fine := s.charge(t, customerID, nil, ledger.CategoryFines, "50.00", time.Now().AddDate(0, 0, 14))

	stored, err := s.repos.Entries.FindByID(s.ctx, s.tenantID, fine.ID)
	require.NoError(t, err)
	assertMoney(t, "0", stored.RemainingAmount)

	payment, err := s.repos.Payments.FindByID(s.ctx, s.tenantID, recorded.Payment.ID)
	require.NoError(t, err)
	assertMoney(t, "30.00", payment.RemainingAmount)
	assert.Equal(t, ledger.PaymentStatusPartial, payment.Status)
}

func TestLedger_TenantIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := NewSharedTestDB(t)
	db.CleanTables()
	a := newLedgerStack(t, db, config.RedisConfig{})
	b := newLedgerStack(t, db, config.RedisConfig{})
	customerID := uuid.New()
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	a.charge(t, customerID, nil, ledger.CategoryRental, "200.00", due)

	recorded, err := b.ledger.RecordPayment(b.ctx, b.tenantID, ledger.NewPaymentParams{
		CustomerID: customerID,
		Amount:     dec("200.00"),
	}, true)
	require.NoError(t, err)
	assertMoney(t, "0", recorded.Allocation.Allocated)

	_, err = a.ledger.GetPayment(a.ctx, a.tenantID, recorded.Payment.ID)
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)

	balance, err := a.ledger.CustomerBalance(a.ctx, a.tenantID, customerID)
	require.NoError(t, err)
	assertMoney(t, "200.00", balance.Outstanding)
	assertMoney(t, "0", balance.Credit)

	var domainErr *shared.DomainError
	_, err = a.ledger.ApplyPayment(a.ctx, a.tenantID, recorded.Payment.ID, nil)
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ledger.CodePaymentNotFound, domainErr.Code)
}
