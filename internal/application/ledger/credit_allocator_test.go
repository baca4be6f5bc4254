package ledger_test

import (
	"testing"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// creditPayment records a payment and runs it through allocation with no
// charges open, leaving it all as credit
func (f *fixture) creditPayment(t *testing.T, amount string, paidAt time.Time) *ledger.Payment {
	t.Helper()
	p := f.payment(t, amount, func(p *ledger.NewPaymentParams) { p.PaymentDate = paidAt })
	_, err := f.processor(appledger.PaymentProcessorConfig{}).Process(f.ctx, f.tenantID, p.ID, nil)
	require.NoError(t, err)
	return f.reloadPayment(t, p.ID)
}

func TestCreditAllocator_SweepOnNewCharge(t *testing.T) {
	f := newFixture(t)
	credit := f.creditPayment(t, "500", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Equal(t, ledger.PaymentStatusCredit, credit.Status)

	publisher := &recordingPublisher{}
	sweeper := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil)
	publisher.handlers = append(publisher.handlers, appledger.NewCreditSweepHandler(sweeper, nil))
	charges := appledger.NewChargeService(f.repos, f.scope, publisher, nil)

	charge, err := charges.CreateCharge(f.ctx, f.tenantID, appledger.CreateChargeRequest{
		CustomerID: f.customerID,
		Category:   ledger.CategoryRental,
		Amount:     dec("500"),
		EntryDate:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, publisher.types(), ledger.EventTypeChargeCreated)

	assertMoney(t, "0", f.reloadCharge(t, charge.ID).RemainingAmount)
	stored := f.reloadPayment(t, credit.ID)
	assertMoney(t, "0", stored.RemainingAmount)
	assert.Equal(t, ledger.PaymentStatusApplied, stored.Status)

	apps, err := f.repos.Applications.FindByPayment(f.ctx, f.tenantID, credit.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, charge.ID, apps[0].ChargeEntryID)

	report, err := appledger.NewConsistencyChecker(f.repos, nil).Check(f.ctx, f.tenantID, f.customerID, false)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestCreditAllocator_OldestCreditFirst(t *testing.T) {
	f := newFixture(t)
	newer := f.creditPayment(t, "100", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	older := f.creditPayment(t, "100", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.charge(t, ledger.CategoryRental, "150", "2024-03-10", nil)

	result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
	require.NoError(t, err)

	assertMoney(t, "150", result.Allocated)
	require.Len(t, result.Payments, 2)
	assert.Equal(t, older.ID, result.Payments[0].PaymentID)
	assertMoney(t, "100", result.Payments[0].Applied)
	assertMoney(t, "50", result.Payments[1].Applied)

	assert.Equal(t, ledger.PaymentStatusApplied, f.reloadPayment(t, older.ID).Status)
	partial := f.reloadPayment(t, newer.ID)
	assert.Equal(t, ledger.PaymentStatusPartial, partial.Status)
	assertMoney(t, "50", partial.RemainingAmount)
}

func TestCreditAllocator_Nothing(t *testing.T) {
	t.Run("no credit", func(t *testing.T) {
		f := newFixture(t)
		f.charge(t, ledger.CategoryRental, "50", "", nil)

		result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
		require.NoError(t, err)
		assert.True(t, result.Allocated.IsZero())
		assert.Empty(t, result.Payments)
	})

	t.Run("no charges", func(t *testing.T) {
		f := newFixture(t)
		credit := f.creditPayment(t, "75", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
		require.NoError(t, err)
		require.Len(t, result.Payments, 1)
		assert.NoError(t, result.Payments[0].Err)
		assert.True(t, result.Payments[0].Applied.IsZero())
		assertMoney(t, "75", f.reloadPayment(t, credit.ID).RemainingAmount)
	})

	t.Run("other customers are untouched", func(t *testing.T) {
		f := newFixture(t)
		credit := f.creditPayment(t, "75", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		f.customerID = uuid.New()
		f.charge(t, ledger.CategoryRental, "50", "", nil)

		result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
		require.NoError(t, err)
		assert.Empty(t, result.Payments)
		assertMoney(t, "75", f.reloadPayment(t, credit.ID).RemainingAmount)
	})
}

func TestCreditAllocator_SweepsCategoriesOutsideDefaultPriority(t *testing.T) {
	categories := []ledger.Category{
		ledger.CategoryExcessMileage,
		ledger.CategoryInsurance,
		ledger.CategoryTax,
		ledger.CategoryDeliveryFee,
		ledger.CategorySecurityDeposit,
	}
	for _, category := range categories {
		t.Run(category.String(), func(t *testing.T) {
			f := newFixture(t)
			credit := f.creditPayment(t, "500", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			charge := f.charge(t, category, "100", "2024-02-01", nil)

			result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
			require.NoError(t, err)

			assertMoney(t, "100", result.Allocated)
			assertMoney(t, "0", f.reloadCharge(t, charge.ID).RemainingAmount)
			stored := f.reloadPayment(t, credit.ID)
			assertMoney(t, "400", stored.RemainingAmount)
			assert.Equal(t, ledger.PaymentStatusPartial, stored.Status)
		})
	}
}

func TestCreditAllocator_DefaultPriorityBeforeOtherCategories(t *testing.T) {
	f := newFixture(t)
	f.creditPayment(t, "100", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	mileage := f.charge(t, ledger.CategoryExcessMileage, "60", "2024-01-05", nil)
	rental := f.charge(t, ledger.CategoryRental, "60", "2024-03-01", nil)

	result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
	require.NoError(t, err)

	assertMoney(t, "100", result.Allocated)
	assertMoney(t, "0", f.reloadCharge(t, rental.ID).RemainingAmount)
	assertMoney(t, "20", f.reloadCharge(t, mileage.ID).RemainingAmount)
}

func TestCreditAllocator_SweepAfterPartialRefund(t *testing.T) {
	f := newFixture(t)
	credit := f.creditPayment(t, "500", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	_, err := f.refunds(appledger.RefundProcessorConfig{}).Refund(f.ctx, appledger.RefundRequest{
		TenantID: f.tenantID, PaymentID: credit.ID, Amount: dec("100"),
	})
	require.NoError(t, err)
	refunded := f.reloadPayment(t, credit.ID)
	assert.Equal(t, ledger.PaymentStatusPartialRefund, refunded.Status)
	assertMoney(t, "400", refunded.RemainingAmount)

	charge := f.charge(t, ledger.CategoryRental, "100", "2024-02-01", nil)
	result, err := appledger.NewCreditAllocator(f.repos, f.scope, nil, nil).SweepCredit(f.ctx, f.tenantID, f.customerID)
	require.NoError(t, err)

	assertMoney(t, "100", result.Allocated)
	assertMoney(t, "0", f.reloadCharge(t, charge.ID).RemainingAmount)
	stored := f.reloadPayment(t, credit.ID)
	assertMoney(t, "300", stored.RemainingAmount)
	assert.Equal(t, ledger.PaymentStatusPartialRefund, stored.Status)

	report, err := appledger.NewConsistencyChecker(f.repos, nil).Check(f.ctx, f.tenantID, f.customerID, false)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}
