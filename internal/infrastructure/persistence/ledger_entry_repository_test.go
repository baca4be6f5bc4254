package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/tenant"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type chargeOpt func(*ledger.ChargeParams)

func withDueDate(d time.Time) chargeOpt {
	return func(p *ledger.ChargeParams) { p.DueDate = &d }
}

func withRental(id uuid.UUID) chargeOpt {
	return func(p *ledger.ChargeParams) { p.RentalID = &id }
}

func seedCharge(t *testing.T, repo *persistence.GormLedgerEntryRepository, tenantID, customerID uuid.UUID, category ledger.Category, amount string, entryDate time.Time, opts ...chargeOpt) *ledger.LedgerEntry {
	t.Helper()
	params := ledger.ChargeParams{
		CustomerID: customerID,
		Category:   category,
		Amount:     dec(amount),
		EntryDate:  entryDate,
	}
	for _, opt := range opts {
		opt(&params)
	}
	charge, err := ledger.NewCharge(tenantID, params)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), charge))
	return charge
}

func TestLedgerEntryRepository_FindOutstandingCharges(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewGormLedgerEntryRepository(testdb.New(t))
	tenantID, customerID := uuid.New(), uuid.New()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	late := seedCharge(t, repo, tenantID, customerID, ledger.CategoryRental, "100.00", day, withDueDate(day.AddDate(0, 0, 10)))
	early := seedCharge(t, repo, tenantID, customerID, ledger.CategoryRental, "50.00", day.AddDate(0, 0, 1), withDueDate(day.AddDate(0, 0, 2)))
	undated := seedCharge(t, repo, tenantID, customerID, ledger.CategoryTax, "20.00", day.AddDate(0, 0, 5))
	seedCharge(t, repo, uuid.New(), customerID, ledger.CategoryRental, "999.00", day)

	t.Run("orders by due date with undated charges last", func(t *testing.T) {
		charges, err := repo.FindOutstandingCharges(ctx, tenantID, ledger.ChargeFilter{CustomerID: &customerID})
		require.NoError(t, err)
		require.Len(t, charges, 3)
		assert.Equal(t, early.ID, charges[0].ID)
		assert.Equal(t, late.ID, charges[1].ID)
		assert.Equal(t, undated.ID, charges[2].ID)
	})

	t.Run("filters by category", func(t *testing.T) {
		charges, err := repo.FindOutstandingCharges(ctx, tenantID, ledger.ChargeFilter{
			CustomerID: &customerID,
			Category:   ledger.CategoryTax,
		})
		require.NoError(t, err)
		require.Len(t, charges, 1)
		assert.Equal(t, undated.ID, charges[0].ID)
	})

	t.Run("skips settled charges", func(t *testing.T) {
		_, err := repo.DecrementRemaining(ctx, tenantID, early.ID, dec("50.00"))
		require.NoError(t, err)

		charges, err := repo.FindOutstandingCharges(ctx, tenantID, ledger.ChargeFilter{CustomerID: &customerID})
		require.NoError(t, err)
		assert.Len(t, charges, 2)

		has, err := repo.HasCharges(ctx, tenantID, ledger.ChargeFilter{CustomerID: &customerID, Category: ledger.CategoryRental})
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("does not see other tenants", func(t *testing.T) {
		charges, err := repo.FindOutstandingCharges(ctx, uuid.New(), ledger.ChargeFilter{CustomerID: &customerID})
		require.NoError(t, err)
		assert.Empty(t, charges)

		_, err = repo.FindByID(ctx, uuid.New(), late.ID)
		assert.ErrorIs(t, err, ledger.ErrChargeNotFound)
	})
}

func TestLedgerEntryRepository_DecrementRemaining(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewGormLedgerEntryRepository(testdb.New(t))
	tenantID, customerID := uuid.New(), uuid.New()
	charge := seedCharge(t, repo, tenantID, customerID, ledger.CategoryRental, "100.00", time.Now())

	remaining, err := repo.DecrementRemaining(ctx, tenantID, charge.ID, dec("40.005"))
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("59.99")), "got %s", remaining)

	_, err = repo.DecrementRemaining(ctx, tenantID, charge.ID, dec("60.00"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientRemaining)

	_, err = repo.DecrementRemaining(ctx, tenantID, charge.ID, decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = repo.DecrementRemaining(ctx, tenantID, uuid.New(), dec("1.00"))
	assert.ErrorIs(t, err, ledger.ErrChargeNotFound)

	remaining, err = repo.DecrementRemaining(ctx, tenantID, charge.ID, dec("59.99"))
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())

	stored, err := repo.FindByID(ctx, tenantID, charge.ID)
	require.NoError(t, err)
	assert.True(t, stored.RemainingAmount.IsZero())
	assert.True(t, stored.Amount.Equal(dec("100.00")))
}

func TestLedgerEntryRepository_PaymentGate(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewGormLedgerEntryRepository(testdb.New(t))
	tenantID := uuid.New()

	payment, err := ledger.NewPayment(tenantID, ledger.NewPaymentParams{
		CustomerID: uuid.New(),
		Amount:     dec("75.00"),
	})
	require.NoError(t, err)

	entry, err := repo.FindPaymentEntry(ctx, tenantID, payment.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, repo.Create(ctx, ledger.NewPaymentEntry(payment)))
	err = repo.Create(ctx, ledger.NewPaymentEntry(payment))
	assert.ErrorIs(t, err, ledger.ErrDuplicateEntry)

	entry, err = repo.FindPaymentEntry(ctx, tenantID, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, ledger.PaymentReference(payment.ID), entry.Reference)
	assert.True(t, entry.Amount.Equal(dec("-75.00")))

	t.Run("reclaims only stale claims", func(t *testing.T) {
		ok, err := repo.ReclaimPaymentEntry(ctx, tenantID, entry.ID, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ReclaimPaymentEntry(ctx, tenantID, entry.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("delete releases the gate", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, tenantID, entry.ID))
		assert.ErrorIs(t, repo.Delete(ctx, tenantID, entry.ID), ledger.ErrChargeNotFound)
		require.NoError(t, repo.Create(ctx, ledger.NewPaymentEntry(payment)))
	})
}

func TestLedgerEntryRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewGormLedgerEntryRepository(testdb.New(t))

	t.Run("requires a tenant", func(t *testing.T) {
		charge, err := ledger.NewCharge(uuid.Nil, ledger.ChargeParams{
			CustomerID: uuid.New(),
			Category:   ledger.CategoryRental,
			Amount:     dec("10.00"),
		})
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, charge), tenant.ErrTenantIDRequired)
	})

	t.Run("rejects a repeated reference", func(t *testing.T) {
		tenantID := uuid.New()
		params := ledger.ChargeParams{
			CustomerID: uuid.New(),
			Category:   ledger.CategoryFines,
			Amount:     dec("30.00"),
			Reference:  "PCN-1234",
		}
		first, err := ledger.NewCharge(tenantID, params)
		require.NoError(t, err)
		second, err := ledger.NewCharge(tenantID, params)
		require.NoError(t, err)

		require.NoError(t, repo.Create(ctx, first))
		assert.ErrorIs(t, repo.Create(ctx, second), ledger.ErrDuplicateEntry)

		other, err := ledger.NewCharge(uuid.New(), params)
		require.NoError(t, err)
		assert.NoError(t, repo.Create(ctx, other))
	})
}

func TestLedgerEntryRepository_Sums(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewGormLedgerEntryRepository(testdb.New(t))
	tenantID, customerID, rentalID := uuid.New(), uuid.New(), uuid.New()
	paymentID := uuid.New()

	for _, share := range []struct {
		category ledger.Category
		amount   string
		key      string
	}{
		{ledger.CategoryRental, "30.00", "r1"},
		{ledger.CategoryRental, "12.50", "r2"},
		{ledger.CategoryTax, "6.00", "r1"},
	} {
		entry, err := ledger.NewRefundEntry(tenantID, ledger.RefundParams{
			CustomerID: &customerID,
			RentalID:   &rentalID,
			PaymentID:  &paymentID,
			Category:   share.category,
			Amount:     dec(share.amount),
			Reference:  ledger.RefundReference(share.key, share.category),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, entry))
	}

	refunded, err := repo.SumRefundedByCategory(ctx, tenantID, paymentID)
	require.NoError(t, err)
	assert.True(t, refunded[ledger.CategoryRental].Equal(dec("42.50")))
	assert.True(t, refunded[ledger.CategoryTax].Equal(dec("6.00")))

	charge := seedCharge(t, repo, tenantID, customerID, ledger.CategoryFines, "80.00", time.Now(), withRental(rentalID))
	for _, amount := range []string{"20.00", "15.00"} {
		deduction, err := ledger.NewDeductionEntry(charge, dec(amount))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, deduction))
	}

	deducted, err := repo.SumDeductionsByCharges(ctx, tenantID, []uuid.UUID{charge.ID, uuid.New()})
	require.NoError(t, err)
	assert.True(t, deducted[charge.ID].Equal(dec("35.00")))
	assert.Len(t, deducted, 1)

	entries, err := repo.FindByRental(ctx, tenantID, rentalID)
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	byPayment, err := repo.FindByPayment(ctx, tenantID, paymentID)
	require.NoError(t, err)
	assert.Len(t, byPayment, 3)
}

func TestLedgerSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	entries := persistence.NewGormLedgerEntryRepository(db)
	payments := persistence.NewGormPaymentRepository(db)
	snapshots := persistence.NewGormLedgerSnapshotRepository(db)
	tenantID, customerID := uuid.New(), uuid.New()

	seedCharge(t, entries, tenantID, customerID, ledger.CategoryRental, "100.00", time.Now())
	seedCharge(t, entries, tenantID, customerID, ledger.CategoryTax, "20.00", time.Now())

	pending, err := ledger.NewPayment(tenantID, ledger.NewPaymentParams{CustomerID: customerID, Amount: dec("10.00")})
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, pending))

	credit, err := ledger.NewPayment(tenantID, ledger.NewPaymentParams{CustomerID: customerID, Amount: dec("40.00")})
	require.NoError(t, err)
	require.NoError(t, credit.CompleteAllocation(decimal.Zero))
	require.NoError(t, payments.Create(ctx, credit))

	refunded, err := ledger.NewPayment(tenantID, ledger.NewPaymentParams{CustomerID: customerID, Amount: dec("50.00")})
	require.NoError(t, err)
	require.NoError(t, refunded.CompleteAllocation(decimal.Zero))
	require.NoError(t, refunded.RecordRefund(dec("20.00"), "goodwill"))
	require.NoError(t, payments.Create(ctx, refunded))

	ids, err := snapshots.ActiveTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tenantID}, ids)

	payer := uuid.New()
	onlyPaid, err := ledger.NewPayment(tenantID, ledger.NewPaymentParams{CustomerID: payer, Amount: dec("5.00")})
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, onlyPaid))

	customers, err := snapshots.ActiveCustomerIDs(ctx, tenantID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{customerID, payer}, customers)

	none, err := snapshots.ActiveCustomerIDs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)

	snap, err := snapshots.Snapshot(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, snap.OutstandingCharges.Equal(dec("120")), "got %s", snap.OutstandingCharges)
	assert.Equal(t, int64(2), snap.OpenCharges)
	assert.True(t, snap.UnappliedCredit.Equal(dec("70")), "got %s", snap.UnappliedCredit)
	assert.Equal(t, int64(2), snap.PendingPayments)
}
