package handler

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeService books and reverses charges
type ChargeService interface {
	CreateCharge(ctx context.Context, tenantID uuid.UUID, req appledger.CreateChargeRequest) (*ledger.LedgerEntry, error)
	ReverseCharge(ctx context.Context, tenantID, chargeID uuid.UUID, reason string) (*appledger.ReverseChargeResult, error)
	ImportCharges(ctx context.Context, tenantID uuid.UUID, src io.Reader, dryRun bool) (*appledger.ChargeImportResult, error)
}

// ChargeHandler handles charge endpoints
type ChargeHandler struct {
	BaseHandler
	charges ChargeService
}

// NewChargeHandler creates a new ChargeHandler
func NewChargeHandler(charges ChargeService) *ChargeHandler {
	return &ChargeHandler{charges: charges}
}

// CreateChargeRequest represents a billable event
// @Description Request body for creating a charge
type CreateChargeRequest struct {
	CustomerID string          `json:"customerId" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440002"`
	RentalID   string          `json:"rentalId" binding:"omitempty,uuid" example:"550e8400-e29b-41d4-a716-446655440003"`
	VehicleID  string          `json:"vehicleId" binding:"omitempty,uuid" example:"550e8400-e29b-41d4-a716-446655440004"`
	Category   string          `json:"category" binding:"required,ledger_category" example:"Excess Mileage"`
	Amount     decimal.Decimal `json:"amount" binding:"required,money" swaggertype:"string" example:"45.00"`
	EntryDate  string          `json:"entryDate" example:"2026-01-24"`
	DueDate    string          `json:"dueDate" example:"2026-02-24"`
	Reference  string          `json:"reference" binding:"max=200" example:"mileage-2026-01"`
}

// ReverseChargeRequest represents a charge reversal
// @Description Request body for reversing a charge
type ReverseChargeRequest struct {
	Reason string `json:"reason" binding:"required,max=500" example:"Charged in error"`
}

// Create godoc
// @ID           createCharge
// @Summary      Create a charge
// @Description  Book a charge for a customer, optionally tied to a rental and vehicle
// @Tags         charges
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body CreateChargeRequest true "Charge"
// @Success      201 {object} APIResponse[LedgerEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /charges [post]
func (h *ChargeHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req CreateChargeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appReq, msg := req.toAppRequest()
	if msg != "" {
		h.BadRequest(c, msg)
		return
	}
	charge, err := h.charges.CreateCharge(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toLedgerEntryResponse(charge))
}

func (r CreateChargeRequest) toAppRequest() (appledger.CreateChargeRequest, string) {
	out := appledger.CreateChargeRequest{
		Category:  ledger.Category(r.Category),
		Amount:    r.Amount,
		Reference: r.Reference,
		EntryDate: time.Now().UTC(),
	}
	var err error
	if out.CustomerID, err = uuid.Parse(r.CustomerID); err != nil {
		return out, "invalid customerId"
	}
	if out.RentalID, err = parseOptionalUUID(r.RentalID); err != nil {
		return out, "invalid rentalId"
	}
	if out.VehicleID, err = parseOptionalUUID(r.VehicleID); err != nil {
		return out, "invalid vehicleId"
	}
	entryDate, err := parseOptionalDate(r.EntryDate)
	if err != nil {
		return out, "invalid entryDate"
	}
	if entryDate != nil {
		out.EntryDate = *entryDate
	}
	if out.DueDate, err = parseOptionalDate(r.DueDate); err != nil {
		return out, "invalid dueDate"
	}
	return out, ""
}

// Reverse godoc
// @ID           reverseCharge
// @Summary      Reverse a charge
// @Description  Remove a charge and return whatever payments had applied to it as credit
// @Tags         charges
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Charge ID" format(uuid)
// @Param        request body ReverseChargeRequest true "Reversal"
// @Success      200 {object} APIResponse[ReverseChargeResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /charges/{id}/reverse [post]
func (h *ChargeHandler) Reverse(c *gin.Context) {
	tenantID, chargeID, ok := h.scope(c)
	if !ok {
		return
	}
	var req ReverseChargeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.charges.ReverseCharge(c.Request.Context(), tenantID, chargeID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReverseChargeResponse{
		ChargeID:         result.ChargeID.String(),
		RestoredCredit:   money(result.RestoredCredit),
		AffectedPayments: uuidStrings(result.AffectedPayments),
	})
}

// Import godoc
// @ID           importCharges
// @Summary      Import charges from CSV
// @Description  Book charges in bulk from a CSV file with columns customer_id, category, amount and optionally rental_id, vehicle_id, entry_date, due_date, reference. The file is sent as multipart field "file" or as a text/csv body. Valid rows are booked and rejected rows are reported.
// @Tags         charges
// @Accept       multipart/form-data
// @Accept       text/csv
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        file formData file false "Charge file"
// @Param        dryRun query bool false "Validate without booking"
// @Success      200 {object} APIResponse[ChargeImportResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /charges/import [post]
func (h *ChargeHandler) Import(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	dryRun, err := strconv.ParseBool(c.DefaultQuery("dryRun", "false"))
	if err != nil {
		h.BadRequest(c, "invalid dryRun")
		return
	}

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			h.BadRequest(c, "missing file")
			return
		}
		file, err := header.Open()
		if err != nil {
			h.BadRequest(c, "unreadable file")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.charges.ImportCharges(c.Request.Context(), tenantID, src, dryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toChargeImportResponse(result))
}
