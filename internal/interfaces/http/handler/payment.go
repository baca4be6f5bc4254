package handler

import (
	"context"
	"fmt"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader lets a client retry a refund without refunding twice
const IdempotencyKeyHeader = "Idempotency-Key"

// maxIdempotencyKeyLength keeps refund references within their column
const maxIdempotencyKeyLength = 100

// PaymentService is the part of the ledger service the payment endpoints use
type PaymentService interface {
	RecordPayment(ctx context.Context, tenantID uuid.UUID, params ledger.NewPaymentParams, apply bool) (*appledger.RecordPaymentResult, error)
	ApplyPayment(ctx context.Context, tenantID, paymentID uuid.UUID, targets []ledger.Category) (*appledger.ProcessResult, error)
	Refund(ctx context.Context, req appledger.RefundRequest) (*appledger.RefundResult, error)
	GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*appledger.PaymentDetail, error)
}

// PaymentHandler handles payment recording, allocation and refunds
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// RecordPaymentRequest represents a request to record money received
// @Description Request body for recording a payment
type RecordPaymentRequest struct {
	CustomerID       string          `json:"customerId" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440002"`
	RentalID         string          `json:"rentalId" binding:"omitempty,uuid" example:"550e8400-e29b-41d4-a716-446655440003"`
	Amount           decimal.Decimal `json:"amount" binding:"required,money" swaggertype:"string" example:"250.00"`
	PaymentType      string          `json:"paymentType" binding:"omitempty,oneof=Payment InitialFee Fine Deposit Extension" example:"Payment"`
	Method           string          `json:"method" binding:"max=50" example:"card"`
	TargetCategories []string        `json:"targetCategories" binding:"omitempty,max=20,dive,ledger_category"`
	PaymentDate      string          `json:"paymentDate" example:"2026-01-24"`
	ExternalRef      string          `json:"externalRef" binding:"max=200" example:"pi_3Nx"`
	Apply            bool            `json:"apply" example:"true"`
}

// ApplyPaymentRequest optionally overrides the allocation order
// @Description Request body for applying a payment
type ApplyPaymentRequest struct {
	TargetCategories []string `json:"targetCategories" binding:"omitempty,max=20,dive,ledger_category"`
}

// RefundPaymentRequest represents a refund against a payment
// @Description Request body for refunding a payment
type RefundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,money" swaggertype:"string" example:"100.00"`
	Reason string          `json:"reason" binding:"max=500" example:"Vehicle returned early"`
}

// Record godoc
// @ID           recordPayment
// @Summary      Record a payment
// @Description  Store money received as a Pending payment. With apply=true it is allocated straight away.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body RecordPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[RecordPaymentResponse]
// @Success      207 {object} APIResponse[RecordPaymentResponse] "Recorded, some postings failed"
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	params, err := req.toParams()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.payments.RecordPayment(c.Request.Context(), tenantID, params, req.Apply)
	if result == nil {
		h.HandleError(c, err)
		return
	}

	resp := RecordPaymentResponse{
		Payment:    toPaymentResponse(result.Payment),
		Allocation: toAllocationResponse(result.Allocation),
	}
	switch {
	case result.Allocation != nil && result.Allocation.HasFailures():
		h.Partial(c, resp, fmt.Sprintf("%d postings failed", len(result.Allocation.Failures)))
	case err != nil:
		// The payment is stored, only its allocation failed
		h.HandleErrorWithData(c, err, resp)
	default:
		h.Created(c, resp)
	}
}

func (r RecordPaymentRequest) toParams() (ledger.NewPaymentParams, error) {
	customerID, err := uuid.Parse(r.CustomerID)
	if err != nil {
		return ledger.NewPaymentParams{}, fmt.Errorf("invalid customerId")
	}
	rentalID, err := parseOptionalUUID(r.RentalID)
	if err != nil {
		return ledger.NewPaymentParams{}, fmt.Errorf("invalid rentalId")
	}
	paymentDate := time.Now().UTC()
	if d, err := parseOptionalDate(r.PaymentDate); err != nil {
		return ledger.NewPaymentParams{}, fmt.Errorf("invalid paymentDate")
	} else if d != nil {
		paymentDate = *d
	}
	return ledger.NewPaymentParams{
		CustomerID:       customerID,
		RentalID:         rentalID,
		Amount:           r.Amount,
		PaymentType:      ledger.PaymentType(r.PaymentType),
		Method:           r.Method,
		TargetCategories: toCategories(r.TargetCategories),
		PaymentDate:      paymentDate,
		ExternalRef:      r.ExternalRef,
	}, nil
}

// Get godoc
// @ID           getPayment
// @Summary      Get a payment
// @Description  Payment with the charges it settled and refunded amounts per category
// @Tags         payments
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[PaymentDetailResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	tenantID, paymentID, ok := h.scope(c)
	if !ok {
		return
	}
	detail, err := h.payments.GetPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentDetailResponse(detail))
}

// Apply godoc
// @ID           applyPayment
// @Summary      Apply a payment
// @Description  Allocate a payment to outstanding charges oldest first. Repeated calls return the stored outcome.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body ApplyPaymentRequest false "Allocation order override"
// @Success      200 {object} APIResponse[AllocationResponse]
// @Success      207 {object} APIResponse[AllocationResponse] "Allocated, some postings failed"
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /payments/{id}/apply [post]
func (h *PaymentHandler) Apply(c *gin.Context) {
	tenantID, paymentID, ok := h.scope(c)
	if !ok {
		return
	}
	var req ApplyPaymentRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.ApplyPayment(c.Request.Context(), tenantID, paymentID, toCategories(req.TargetCategories))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := toAllocationResponse(result)
	if result.HasFailures() {
		h.Partial(c, resp, fmt.Sprintf("%d postings failed", len(result.Failures)))
		return
	}
	h.Success(c, resp)
}

// Refund godoc
// @ID           refundPayment
// @Summary      Refund a payment
// @Description  Refund part or all of a payment through Stripe and split it across invoice categories.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        Idempotency-Key header string false "Replays the first outcome on retry"
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body RefundPaymentRequest true "Refund"
// @Success      200 {object} APIResponse[RefundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	tenantID, paymentID, ok := h.scope(c)
	if !ok {
		return
	}
	var req RefundPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLength {
		h.BadRequest(c, fmt.Sprintf("%s must be at most %d characters", IdempotencyKeyHeader, maxIdempotencyKeyLength))
		return
	}

	result, err := h.payments.Refund(c.Request.Context(), appledger.RefundRequest{
		TenantID:       tenantID,
		PaymentID:      paymentID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: key,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(result))
}
