package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupPaymentRouter(tenantID uuid.UUID, svc *MockLedgerService) *gin.Engine {
	h := NewPaymentHandler(svc)
	r := newTestRouter(tenantID)
	r.POST("/payments", h.Record)
	r.GET("/payments/:id", h.Get)
	r.POST("/payments/:id/apply", h.Apply)
	r.POST("/payments/:id/refund", h.Refund)
	return r
}

func newTestPayment(t *testing.T, tenantID uuid.UUID, amount string) *ledger.Payment {
	t.Helper()
	p, err := ledger.NewPayment(tenantID, ledger.NewPaymentParams{
		CustomerID:  uuid.New(),
		Amount:      decimal.RequireFromString(amount),
		PaymentDate: time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return p
}

func TestPaymentHandler_Record(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()

	t.Run("records without applying", func(t *testing.T) {
		svc := new(MockLedgerService)
		payment := newTestPayment(t, tenantID, "150.00")
		svc.On("RecordPayment", mock.Anything, tenantID, mock.MatchedBy(func(p ledger.NewPaymentParams) bool {
			return p.CustomerID == customerID &&
				p.Amount.Equal(decimal.RequireFromString("150")) &&
				p.PaymentDate.Equal(time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC)) &&
				len(p.TargetCategories) == 1 && p.TargetCategories[0] == ledger.CategoryTax
		}), false).Return(&appledger.RecordPaymentResult{Payment: payment}, nil)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments", map[string]any{
			"customerId":       customerID.String(),
			"amount":           "150.00",
			"paymentDate":      "2026-01-24",
			"targetCategories": []string{"Tax"},
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var data RecordPaymentResponse
		resp := decodeData(t, w, &data)
		assert.True(t, resp.Success)
		assert.Equal(t, payment.ID.String(), data.Payment.ID)
		assert.Equal(t, "Pending", data.Payment.Status)
		assert.Equal(t, "150.00", data.Payment.Amount)
		assert.Nil(t, data.Allocation)
		svc.AssertExpectations(t)
	})

	t.Run("records and applies", func(t *testing.T) {
		svc := new(MockLedgerService)
		payment := newTestPayment(t, tenantID, "100.00")
		chargeID := uuid.New()
		svc.On("RecordPayment", mock.Anything, tenantID, mock.Anything, true).Return(&appledger.RecordPaymentResult{
			Payment: payment,
			Allocation: &appledger.ProcessResult{
				PaymentID: payment.ID,
				Allocated: decimal.RequireFromString("100"),
				Remaining: decimal.Zero,
				Status:    ledger.PaymentStatusApplied,
				Applications: []ledger.Application{
					{ChargeID: chargeID, Category: ledger.CategoryRental, Amount: decimal.RequireFromString("100")},
				},
			},
		}, nil)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments", map[string]any{
			"customerId": customerID.String(),
			"amount":     100,
			"apply":      true,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var data RecordPaymentResponse
		decodeData(t, w, &data)
		require.NotNil(t, data.Allocation)
		assert.Equal(t, "100.00", data.Allocation.Allocated)
		assert.Equal(t, "0.00", data.Allocation.Remaining)
		assert.Equal(t, "Applied", data.Allocation.Status)
		require.Len(t, data.Allocation.Applications, 1)
		assert.Equal(t, chargeID.String(), data.Allocation.Applications[0].ChargeID)
	})

	t.Run("stored but allocation failed keeps the payment in the body", func(t *testing.T) {
		svc := new(MockLedgerService)
		payment := newTestPayment(t, tenantID, "100.00")
		svc.On("RecordPayment", mock.Anything, tenantID, mock.Anything, true).
			Return(&appledger.RecordPaymentResult{Payment: payment}, ledger.ErrAllocationTimeout)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments", map[string]any{
			"customerId": customerID.String(),
			"amount":     "100.00",
			"apply":      true,
		})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var data RecordPaymentResponse
		resp := decodeData(t, w, &data)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeAllocationTimeout, resp.Error.Code)
		assert.Equal(t, payment.ID.String(), data.Payment.ID)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			body map[string]any
		}{
			{"missing customer", map[string]any{"amount": "10.00"}},
			{"zero amount", map[string]any{"customerId": customerID.String(), "amount": "0"}},
			{"negative amount", map[string]any{"customerId": customerID.String(), "amount": "-5.00"}},
			{"sub-cent amount", map[string]any{"customerId": customerID.String(), "amount": "10.005"}},
			{"bad category", map[string]any{"customerId": customerID.String(), "amount": "10", "targetCategories": []string{" Tax"}}},
			{"bad payment type", map[string]any{"customerId": customerID.String(), "amount": "10", "paymentType": "Gift"}},
			{"external ref longer than its column", map[string]any{"customerId": customerID.String(), "amount": "10", "externalRef": strings.Repeat("p", 201)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockLedgerService)
				w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments", tt.body)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
				svc.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := new(MockLedgerService)
		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments", "{not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
	})

	t.Run("bad payment date", func(t *testing.T) {
		svc := new(MockLedgerService)
		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments", map[string]any{
			"customerId":  customerID.String(),
			"amount":      "10.00",
			"paymentDate": "24/01/2026",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
	})
}

func TestPaymentHandler_Apply(t *testing.T) {
	tenantID := uuid.New()
	paymentID := uuid.New()

	t.Run("applies with target override", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("ApplyPayment", mock.Anything, tenantID, paymentID, []ledger.Category{ledger.CategoryFines}).
			Return(&appledger.ProcessResult{
				PaymentID: paymentID,
				Allocated: decimal.RequireFromString("40"),
				Remaining: decimal.RequireFromString("10"),
				Status:    ledger.PaymentStatusPartial,
			}, nil)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/apply",
			map[string]any{"targetCategories": []string{"Fines"}})

		assert.Equal(t, http.StatusOK, w.Code)
		var data AllocationResponse
		resp := decodeData(t, w, &data)
		assert.True(t, resp.Success)
		assert.Equal(t, "40.00", data.Allocated)
		assert.Equal(t, "10.00", data.Remaining)
		assert.Equal(t, "Partial", data.Status)
		assert.Empty(t, data.Applications)
	})

	t.Run("empty body uses stored order", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("ApplyPayment", mock.Anything, tenantID, paymentID, []ledger.Category(nil)).
			Return(&appledger.ProcessResult{PaymentID: paymentID, Status: ledger.PaymentStatusCredit}, nil)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/apply", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("partial posting failure answers 207 with the result", func(t *testing.T) {
		svc := new(MockLedgerService)
		chargeID := uuid.New()
		svc.On("ApplyPayment", mock.Anything, tenantID, paymentID, mock.Anything).
			Return(&appledger.ProcessResult{
				PaymentID: paymentID,
				Allocated: decimal.RequireFromString("60"),
				Remaining: decimal.RequireFromString("40"),
				Status:    ledger.PaymentStatusPartial,
				Failures: []ledger.AllocationFailure{
					{ChargeID: chargeID, Category: ledger.CategoryTax, Amount: decimal.RequireFromString("40"), Err: errors.New("insert failed")},
				},
			}, nil)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/apply", nil)

		assert.Equal(t, http.StatusMultiStatus, w.Code)
		var data AllocationResponse
		resp := decodeData(t, w, &data)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodePartialPostingFailure, resp.Error.Code)
		require.Len(t, data.Failures, 1)
		assert.Equal(t, chargeID.String(), data.Failures[0].ChargeID)
		assert.Equal(t, "insert failed", data.Failures[0].Error)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("ApplyPayment", mock.Anything, tenantID, paymentID, mock.Anything).Return(nil, ledger.ErrPaymentNotFound)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/apply", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodePaymentNotFound, decodeResponse(t, w).Error.Code)
	})
}

func TestPaymentHandler_Get(t *testing.T) {
	tenantID := uuid.New()
	svc := new(MockLedgerService)
	payment := newTestPayment(t, tenantID, "80.00")
	app, err := ledger.NewPaymentApplication(tenantID, payment.ID, uuid.New(), decimal.RequireFromString("30"))
	require.NoError(t, err)
	svc.On("GetPayment", mock.Anything, tenantID, payment.ID).Return(&appledger.PaymentDetail{
		Payment:            payment,
		Applications:       []*ledger.PaymentApplication{app},
		RefundedByCategory: map[ledger.Category]decimal.Decimal{ledger.CategoryRental: decimal.RequireFromString("12.5")},
	}, nil)

	w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodGet, "/payments/"+payment.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var data PaymentDetailResponse
	decodeData(t, w, &data)
	assert.Equal(t, payment.ID.String(), data.Payment.ID)
	require.Len(t, data.Applications, 1)
	assert.Equal(t, "30.00", data.Applications[0].AmountApplied)
	assert.Equal(t, "12.50", data.RefundedByCategory["Rental"])
}

func TestPaymentHandler_Refund(t *testing.T) {
	tenantID := uuid.New()
	paymentID := uuid.New()

	t.Run("refunds with idempotency key", func(t *testing.T) {
		svc := new(MockLedgerService)
		entryIDs := []uuid.UUID{uuid.New(), uuid.New()}
		svc.On("Refund", mock.Anything, mock.MatchedBy(func(req appledger.RefundRequest) bool {
			return req.TenantID == tenantID && req.PaymentID == paymentID &&
				req.Amount.Equal(decimal.RequireFromString("100")) &&
				req.Reason == "early return" && req.IdempotencyKey == "key-1"
		})).Return(&appledger.RefundResult{
			PaymentID:      paymentID,
			Amount:         decimal.RequireFromString("100"),
			StripeRefundID: "re_123",
			LedgerEntryIDs: entryIDs,
			Shares: []ledger.RefundShare{
				{Category: ledger.CategoryRental, InvoiceAmount: decimal.RequireFromString("300"), Amount: decimal.RequireFromString("75")},
				{Category: ledger.CategoryTax, InvoiceAmount: decimal.RequireFromString("100"), Amount: decimal.RequireFromString("25")},
			},
			Status:       ledger.PaymentStatusPartialRefund,
			RefundStatus: ledger.RefundStatusPartial,
		}, nil)

		r := setupPaymentRouter(tenantID, svc)
		req := newJSONRequest(t, http.MethodPost, "/payments/"+paymentID.String()+"/refund",
			map[string]any{"amount": "100.00", "reason": "early return"})
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var data RefundResponse
		decodeData(t, w, &data)
		assert.Equal(t, []string{entryIDs[0].String(), entryIDs[1].String()}, data.LedgerEntryIDs)
		assert.Equal(t, "re_123", data.StripeRefundID)
		assert.Equal(t, "Partial Refund", data.Status)
		require.Len(t, data.Shares, 2)
		assert.Equal(t, "75.00", data.Shares[0].Amount)
	})

	t.Run("exceeds payment", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("Refund", mock.Anything, mock.Anything).Return(nil, ledger.ErrRefundExceedsPayment)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/refund",
			map[string]any{"amount": "1000.00"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeRefundExceedsPayment, decodeResponse(t, w).Error.Code)
	})

	t.Run("gateway rejected", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("Refund", mock.Anything, mock.Anything).Return(nil, errGatewayRejected)

		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/refund",
			map[string]any{"amount": "10.00"})

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("overlong idempotency key is rejected before the service", func(t *testing.T) {
		svc := new(MockLedgerService)
		req := newJSONRequest(t, http.MethodPost, "/payments/"+paymentID.String()+"/refund",
			map[string]any{"amount": "10.00"})
		req.Header.Set(IdempotencyKeyHeader, strings.Repeat("k", 101))
		w := serve(setupPaymentRouter(tenantID, svc), req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
		svc.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})

	t.Run("non-positive amount is rejected before the service", func(t *testing.T) {
		svc := new(MockLedgerService)
		w := performJSON(setupPaymentRouter(tenantID, svc), http.MethodPost, "/payments/"+paymentID.String()+"/refund",
			map[string]any{"amount": "0"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})
}
