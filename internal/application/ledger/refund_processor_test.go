package ledger_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	requests []appledger.GatewayRefundRequest
	err      error
}

func (g *fakeGateway) Refund(_ context.Context, req appledger.GatewayRefundRequest) (string, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return "re_test_123", nil
}

type memoryRefundCache struct {
	mu          sync.Mutex
	totals      map[uuid.UUID]map[ledger.Category]decimal.Decimal
	hits        int
	invalidated int
}

func newMemoryRefundCache() *memoryRefundCache {
	return &memoryRefundCache{totals: make(map[uuid.UUID]map[ledger.Category]decimal.Decimal)}
}

func (c *memoryRefundCache) Get(_ context.Context, _, paymentID uuid.UUID) (map[ledger.Category]decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	totals, ok := c.totals[paymentID]
	if ok {
		c.hits++
	}
	return totals, ok, nil
}

func (c *memoryRefundCache) Set(_ context.Context, _, paymentID uuid.UUID, totals map[ledger.Category]decimal.Decimal, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[paymentID] = totals
	return nil
}

func (c *memoryRefundCache) Invalidate(_ context.Context, _, paymentID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.totals, paymentID)
	c.invalidated++
	return nil
}

func (f *fixture) refunds(cfg appledger.RefundProcessorConfig) *appledger.RefundProcessor {
	return appledger.NewRefundProcessor(f.repos, f.scope, cfg)
}

func (f *fixture) rentalPayment(t *testing.T, amount string) (*ledger.Payment, uuid.UUID) {
	t.Helper()
	rentalID := uuid.New()
	f.invoice(t, rentalID, func(i *ledger.Invoice) {
		i.RentalFee = dec("300")
		i.Tax = dec("30")
		i.SecurityDeposit = dec("100")
	})
	return f.payment(t, amount, func(p *ledger.NewPaymentParams) { p.RentalID = &rentalID }), rentalID
}

func TestRefundProcessor_ProportionalSplit(t *testing.T) {
	f := newFixture(t)
	payment, _ := f.rentalPayment(t, "430")

	result, err := f.refunds(appledger.RefundProcessorConfig{}).Refund(f.ctx, appledger.RefundRequest{
		TenantID:  f.tenantID,
		PaymentID: payment.ID,
		Amount:    dec("43"),
		Reason:    "early return",
	})
	require.NoError(t, err)

	shares := map[ledger.Category]string{}
	for _, s := range result.Shares {
		shares[s.Category] = s.Amount.StringFixed(2)
	}
	assert.Equal(t, map[ledger.Category]string{
		ledger.CategoryRental:          "30.00",
		ledger.CategoryTax:             "3.00",
		ledger.CategorySecurityDeposit: "10.00",
	}, shares)
	assert.Len(t, result.LedgerEntryIDs, 3)
	assert.Equal(t, ledger.PaymentStatusPartialRefund, result.Status)
	assert.Equal(t, ledger.RefundStatusPartial, result.RefundStatus)
	assert.Empty(t, result.StripeRefundID)

	stored := f.reloadPayment(t, payment.ID)
	assertMoney(t, "43", stored.RefundAmount)

	refunded, err := f.repos.Entries.SumRefundedByCategory(f.ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	assertMoney(t, "30", refunded[ledger.CategoryRental])
	assertMoney(t, "3", refunded[ledger.CategoryTax])
	assertMoney(t, "10", refunded[ledger.CategorySecurityDeposit])

	pnl, err := f.repos.PnL.FindByPayment(f.ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, pnl, 3)
	total := decimal.Zero
	for _, p := range pnl {
		assert.True(t, p.Amount.IsNegative())
		total = total.Add(p.Amount)
	}
	assertMoney(t, "-43", total)
}

func TestRefundProcessor_SharesSumExactly(t *testing.T) {
	f := newFixture(t)
	payment, _ := f.rentalPayment(t, "430")

	result, err := f.refunds(appledger.RefundProcessorConfig{}).Refund(f.ctx, appledger.RefundRequest{
		TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("10.01"),
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, s := range result.Shares {
		sum = sum.Add(s.Amount)
	}
	assertMoney(t, "10.01", sum)
}

func TestRefundProcessor_FullRefund(t *testing.T) {
	f := newFixture(t)
	payment, _ := f.rentalPayment(t, "430")
	proc := f.refunds(appledger.RefundProcessorConfig{})

	_, err := proc.Refund(f.ctx, appledger.RefundRequest{TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("400")})
	require.NoError(t, err)
	result, err := proc.Refund(f.ctx, appledger.RefundRequest{TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("30")})
	require.NoError(t, err)

	assert.Equal(t, ledger.PaymentStatusRefunded, result.Status)
	assert.Equal(t, ledger.RefundStatusFull, result.RefundStatus)

	_, err = proc.Refund(f.ctx, appledger.RefundRequest{TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("0.01")})
	assert.ErrorIs(t, err, ledger.ErrRefundExceedsPayment)
}

func TestRefundProcessor_Validation(t *testing.T) {
	f := newFixture(t)
	payment := f.payment(t, "50")
	proc := f.refunds(appledger.RefundProcessorConfig{})

	tests := []struct {
		name    string
		payment uuid.UUID
		amount  string
		wantErr error
	}{
		{"zero amount", payment.ID, "0", ledger.ErrInvalidAmount},
		{"negative amount", payment.ID, "-5", ledger.ErrInvalidAmount},
		{"more than paid", payment.ID, "50.01", ledger.ErrRefundExceedsPayment},
		{"unknown payment", uuid.New(), "5", ledger.ErrPaymentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proc.Refund(f.ctx, appledger.RefundRequest{TenantID: f.tenantID, PaymentID: tt.payment, Amount: dec(tt.amount)})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRefundProcessor_NoInvoiceFallsBackToOther(t *testing.T) {
	f := newFixture(t)
	payment := f.payment(t, "80")

	result, err := f.refunds(appledger.RefundProcessorConfig{}).Refund(f.ctx, appledger.RefundRequest{
		TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("80"),
	})
	require.NoError(t, err)

	require.Len(t, result.Shares, 1)
	assert.Equal(t, ledger.CategoryOther, result.Shares[0].Category)
	assertMoney(t, "80", result.Shares[0].Amount)
	assert.Equal(t, ledger.PaymentStatusRefunded, result.Status)
}

func TestRefundProcessor_Gateway(t *testing.T) {
	t.Run("online payments are refunded with the provider", func(t *testing.T) {
		f := newFixture(t)
		payment := f.payment(t, "60", func(p *ledger.NewPaymentParams) { p.ExternalRef = "pi_123" })
		gateway := &fakeGateway{}

		result, err := f.refunds(appledger.RefundProcessorConfig{Gateway: gateway}).Refund(f.ctx, appledger.RefundRequest{
			TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("20"), Reason: "requested_by_customer",
		})
		require.NoError(t, err)

		assert.Equal(t, "re_test_123", result.StripeRefundID)
		require.Len(t, gateway.requests, 1)
		assert.Equal(t, "pi_123", gateway.requests[0].PaymentIntentID)
		assertMoney(t, "20", gateway.requests[0].Amount)
		assert.Equal(t, "GBP", gateway.requests[0].Currency)
		assert.NotEmpty(t, gateway.requests[0].IdempotencyKey)

		entries, err := f.repos.Entries.FindByPayment(f.ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasPrefix(entries[0].Reference, "RFD-re_test_123-"))
	})

	t.Run("provider failure posts nothing", func(t *testing.T) {
		f := newFixture(t)
		payment := f.payment(t, "60", func(p *ledger.NewPaymentParams) { p.ExternalRef = "pi_456" })
		gateway := &fakeGateway{err: errors.New("card_declined")}

		_, err := f.refunds(appledger.RefundProcessorConfig{Gateway: gateway}).Refund(f.ctx, appledger.RefundRequest{
			TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("20"),
		})
		require.Error(t, err)

		entries, err := f.repos.Entries.FindByPayment(f.ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assertMoney(t, "0", f.reloadPayment(t, payment.ID).RefundAmount)
	})
}

func TestRefundProcessor_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	payment, _ := f.rentalPayment(t, "430")
	proc := f.refunds(appledger.RefundProcessorConfig{})
	req := appledger.RefundRequest{
		TenantID:       f.tenantID,
		PaymentID:      payment.ID,
		Amount:         dec("43"),
		IdempotencyKey: "refund-req-1",
	}

	first, err := proc.Refund(f.ctx, req)
	require.NoError(t, err)
	second, err := proc.Refund(f.ctx, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.ElementsMatch(t, first.LedgerEntryIDs, second.LedgerEntryIDs)
	assertMoney(t, "43", second.Amount)
	assertMoney(t, "43", f.reloadPayment(t, payment.ID).RefundAmount)
}

func TestRefundProcessor_RefundedCache(t *testing.T) {
	f := newFixture(t)
	payment, _ := f.rentalPayment(t, "430")
	cache := newMemoryRefundCache()
	proc := f.refunds(appledger.RefundProcessorConfig{Cache: cache})

	totals, err := proc.RefundedByCategory(f.ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	assert.Empty(t, totals)

	_, err = proc.Refund(f.ctx, appledger.RefundRequest{TenantID: f.tenantID, PaymentID: payment.ID, Amount: dec("43")})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	totals, err = proc.RefundedByCategory(f.ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	assertMoney(t, "30", totals[ledger.CategoryRental])

	_, err = proc.RefundedByCategory(f.ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestRefundProcessor_DeductFromCharge(t *testing.T) {
	f := newFixture(t)
	rentalID := uuid.New()
	older := f.charge(t, ledger.CategoryExcessMileage, "80", "2024-01-10", &rentalID)
	newer := f.charge(t, ledger.CategoryExcessMileage, "40", "2024-02-10", &rentalID)
	proc := f.refunds(appledger.RefundProcessorConfig{})

	t.Run("oldest charge is reduced", func(t *testing.T) {
		result, err := proc.DeductFromCharge(f.ctx, appledger.DeductRequest{
			TenantID: f.tenantID,
			RentalID: rentalID,
			Category: ledger.CategoryExcessMileage,
			Amount:   dec("30"),
		})
		require.NoError(t, err)
		assert.Equal(t, older.ID, result.ChargeID)
		assertMoney(t, "50", result.NewRemaining)
		assertMoney(t, "50", f.reloadCharge(t, older.ID).RemainingAmount)
		assertMoney(t, "40", f.reloadCharge(t, newer.ID).RemainingAmount)

		deduction, err := f.repos.Entries.FindByID(f.ctx, f.tenantID, result.EntryID)
		require.NoError(t, err)
		assert.Equal(t, ledger.EntryTypeRefund, deduction.Type)
		assert.Equal(t, ledger.CategorySecurityDeposit, deduction.Category)
		assertMoney(t, "-30", deduction.Amount)
		require.NotNil(t, deduction.TargetChargeID)
		assert.Equal(t, older.ID, *deduction.TargetChargeID)
	})

	t.Run("more than remaining is rejected", func(t *testing.T) {
		_, err := proc.DeductFromCharge(f.ctx, appledger.DeductRequest{
			TenantID: f.tenantID, RentalID: rentalID, Category: ledger.CategoryExcessMileage, Amount: dec("50.01"),
		})
		assert.ErrorIs(t, err, ledger.ErrConstraintViolation)
		assertMoney(t, "50", f.reloadCharge(t, older.ID).RemainingAmount)
	})

	t.Run("no outstanding charge", func(t *testing.T) {
		_, err := proc.DeductFromCharge(f.ctx, appledger.DeductRequest{
			TenantID: f.tenantID, RentalID: rentalID, Category: ledger.CategoryFines, Amount: dec("5"),
		})
		assert.ErrorIs(t, err, ledger.ErrChargeNotFound)
	})

	t.Run("deductions keep the ledger consistent", func(t *testing.T) {
		report, err := appledger.NewConsistencyChecker(f.repos, nil).Check(f.ctx, f.tenantID, f.customerID, false)
		require.NoError(t, err)
		assert.True(t, report.Consistent())
		assert.Equal(t, 2, report.ChargesChecked)
	})
}
