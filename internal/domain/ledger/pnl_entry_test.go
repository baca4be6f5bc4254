package ledger

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPnLPostings(t *testing.T) {
	tenantID := uuid.New()
	charge := newTestCharge(t, tenantID, uuid.New(), CategoryRental, "120", date("2024-02-01"))
	app, err := NewPaymentApplication(tenantID, uuid.New(), charge.ID, dec("45"))
	require.NoError(t, err)

	t.Run("revenue follows the charge due date", func(t *testing.T) {
		rev := NewRevenueForApplication(charge, app)
		assert.Equal(t, PnLSideRevenue, rev.Side)
		assert.True(t, rev.Amount.Equal(dec("45")))
		assert.Equal(t, *date("2024-02-01"), rev.EntryDate)
		assert.Equal(t, "APP-"+app.ID.String(), rev.Reference)
		assert.Equal(t, charge.ID, *rev.ChargeEntryID)
	})

	t.Run("application reversal is negative", func(t *testing.T) {
		rev := NewRevenueReversalForApplication(charge, app)
		assert.True(t, rev.Amount.Equal(dec("-45")))
		assert.Equal(t, "REV-"+app.ID.String(), rev.Reference)
	})

	t.Run("refund reversal keeps the refund sign", func(t *testing.T) {
		paymentID := uuid.New()
		refund, err := NewRefundEntry(tenantID, RefundParams{PaymentID: &paymentID, Category: CategoryTax, Amount: dec("3")})
		require.NoError(t, err)
		rev := NewRevenueReversalForRefund(refund)
		assert.True(t, rev.Amount.Equal(dec("-3")))
		assert.Equal(t, CategoryTax, rev.Category)
		assert.Equal(t, paymentID, *rev.PaymentID)
	})

	t.Run("deduction books positive revenue under the deduction reference", func(t *testing.T) {
		deduction, err := NewDeductionEntry(charge, dec("20"))
		require.NoError(t, err)
		rev := NewRevenueForDeduction(charge, deduction)
		assert.True(t, rev.Amount.Equal(dec("20")))
		assert.Equal(t, CategoryRental, rev.Category)
		assert.True(t, strings.HasPrefix(rev.Reference, "DED-"+charge.ID.String()))
	})
}
