package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupChargeRouter(tenantID uuid.UUID, svc *MockChargeService) *gin.Engine {
	h := NewChargeHandler(svc)
	r := newTestRouter(tenantID)
	r.POST("/charges", h.Create)
	r.POST("/charges/:id/reverse", h.Reverse)
	r.POST("/charges/import", h.Import)
	return r
}

func TestChargeHandler_Create(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()
	rentalID := uuid.New()

	t.Run("creates a charge", func(t *testing.T) {
		svc := new(MockChargeService)
		charge, err := ledger.NewCharge(tenantID, ledger.ChargeParams{
			CustomerID: customerID,
			RentalID:   &rentalID,
			Category:   ledger.CategoryExcessMileage,
			Amount:     decimal.RequireFromString("45"),
			EntryDate:  time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		svc.On("CreateCharge", mock.Anything, tenantID, mock.MatchedBy(func(req appledger.CreateChargeRequest) bool {
			return req.CustomerID == customerID &&
				req.RentalID != nil && *req.RentalID == rentalID &&
				req.VehicleID == nil &&
				req.Category == ledger.CategoryExcessMileage &&
				req.Amount.Equal(decimal.RequireFromString("45")) &&
				req.EntryDate.Equal(time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC)) &&
				req.DueDate != nil
		})).Return(charge, nil)

		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges", map[string]any{
			"customerId": customerID.String(),
			"rentalId":   rentalID.String(),
			"category":   "Excess Mileage",
			"amount":     "45.00",
			"entryDate":  "2026-01-24",
			"dueDate":    "2026-02-24T00:00:00Z",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var data LedgerEntryResponse
		decodeData(t, w, &data)
		assert.Equal(t, charge.ID.String(), data.ID)
		assert.Equal(t, "Charge", data.Type)
		assert.Equal(t, "45.00", data.Amount)
		assert.Equal(t, "45.00", data.RemainingAmount)
		assert.Equal(t, rentalID.String(), data.RentalID)
		svc.AssertExpectations(t)
	})

	t.Run("missing category", func(t *testing.T) {
		svc := new(MockChargeService)
		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges", map[string]any{
			"customerId": customerID.String(),
			"amount":     "45.00",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotEmpty(t, resp.Error.Fields)
		assert.Equal(t, "category", resp.Error.Fields[0].Field)
	})

	t.Run("reference longer than its column", func(t *testing.T) {
		svc := new(MockChargeService)
		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges", map[string]any{
			"customerId": customerID.String(),
			"category":   "Rental",
			"amount":     "45.00",
			"reference":  strings.Repeat("r", 201),
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
		svc.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad due date", func(t *testing.T) {
		svc := new(MockChargeService)
		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges", map[string]any{
			"customerId": customerID.String(),
			"category":   "Rental",
			"amount":     "45.00",
			"dueDate":    "soon",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestChargeHandler_Reverse(t *testing.T) {
	tenantID := uuid.New()
	chargeID := uuid.New()

	t.Run("reverses and reports restored credit", func(t *testing.T) {
		svc := new(MockChargeService)
		paymentID := uuid.New()
		svc.On("ReverseCharge", mock.Anything, tenantID, chargeID, "Charged in error").Return(&appledger.ReverseChargeResult{
			ChargeID:         chargeID,
			RestoredCredit:   decimal.RequireFromString("30"),
			AffectedPayments: []uuid.UUID{paymentID},
		}, nil)

		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges/"+chargeID.String()+"/reverse",
			map[string]any{"reason": "Charged in error"})

		assert.Equal(t, http.StatusOK, w.Code)
		var data ReverseChargeResponse
		decodeData(t, w, &data)
		assert.Equal(t, "30.00", data.RestoredCredit)
		assert.Equal(t, []string{paymentID.String()}, data.AffectedPayments)
	})

	t.Run("settled by deduction", func(t *testing.T) {
		svc := new(MockChargeService)
		svc.On("ReverseCharge", mock.Anything, tenantID, chargeID, mock.Anything).
			Return(nil, shared.ErrInvalidState.WithDetail("charge was settled from a deposit"))

		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges/"+chargeID.String()+"/reverse",
			map[string]any{"reason": "oops"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
	})

	t.Run("reason required", func(t *testing.T) {
		svc := new(MockChargeService)
		w := performJSON(setupChargeRouter(tenantID, svc), http.MethodPost, "/charges/"+chargeID.String()+"/reverse",
			map[string]any{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
