package handler

import (
	"context"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RentalService is the part of the ledger service the rental endpoints use
type RentalService interface {
	DeductFromCharge(ctx context.Context, req appledger.DeductRequest) (*appledger.DeductResult, error)
	RentalLedger(ctx context.Context, tenantID, rentalID uuid.UUID) (*appledger.RentalLedger, error)
}

// RentalHandler handles rental ledger endpoints
type RentalHandler struct {
	BaseHandler
	rentals RentalService
}

// NewRentalHandler creates a new RentalHandler
func NewRentalHandler(rentals RentalService) *RentalHandler {
	return &RentalHandler{rentals: rentals}
}

// DeductionRequest moves part of a held deposit onto a charge
// @Description Request body for a deposit deduction
type DeductionRequest struct {
	Category string          `json:"category" binding:"required,ledger_category" example:"Fines"`
	Amount   decimal.Decimal `json:"amount" binding:"required,money" swaggertype:"string" example:"50.00"`
}

// Deduct godoc
// @ID           deductFromCharge
// @Summary      Deduct from a charge
// @Description  Settle part of a rental's outstanding charge in a category from its held deposit
// @Tags         rentals
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Rental ID" format(uuid)
// @Param        request body DeductionRequest true "Deduction"
// @Success      200 {object} APIResponse[DeductionResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /rentals/{id}/deductions [post]
func (h *RentalHandler) Deduct(c *gin.Context) {
	tenantID, rentalID, ok := h.scope(c)
	if !ok {
		return
	}
	var req DeductionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.rentals.DeductFromCharge(c.Request.Context(), appledger.DeductRequest{
		TenantID: tenantID,
		RentalID: rentalID,
		Category: ledger.Category(req.Category),
		Amount:   req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, DeductionResponse{
		ChargeID:     result.ChargeID.String(),
		EntryID:      result.EntryID.String(),
		NewRemaining: money(result.NewRemaining),
	})
}

// Ledger godoc
// @ID           getRentalLedger
// @Summary      Get a rental's ledger
// @Description  Ledger rows, revenue postings and latest invoice of a rental
// @Tags         rentals
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[RentalLedgerResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /rentals/{id}/ledger [get]
func (h *RentalHandler) Ledger(c *gin.Context) {
	tenantID, rentalID, ok := h.scope(c)
	if !ok {
		return
	}
	result, err := h.rentals.RentalLedger(c.Request.Context(), tenantID, rentalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRentalLedgerResponse(result))
}
