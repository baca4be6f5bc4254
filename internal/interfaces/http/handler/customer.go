package handler

import (
	"context"
	"fmt"
	"strconv"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BalanceReader answers customer balance queries
type BalanceReader interface {
	CustomerBalance(ctx context.Context, tenantID, customerID uuid.UUID) (*appledger.CustomerBalance, error)
}

// CreditSweeper applies held customer credit to charges
type CreditSweeper interface {
	SweepCredit(ctx context.Context, tenantID, customerID uuid.UUID) (*appledger.CreditSweepResult, error)
}

// ConsistencyChecker audits a customer's ledger
type ConsistencyChecker interface {
	Check(ctx context.Context, tenantID, customerID uuid.UUID, repair bool) (*appledger.ConsistencyReport, error)
}

// CustomerHandler handles customer ledger endpoints
type CustomerHandler struct {
	BaseHandler
	balances BalanceReader
	sweeper  CreditSweeper
	checker  ConsistencyChecker
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(balances BalanceReader, sweeper CreditSweeper, checker ConsistencyChecker) *CustomerHandler {
	return &CustomerHandler{
		balances: balances,
		sweeper:  sweeper,
		checker:  checker,
	}
}

// Balance godoc
// @ID           getCustomerBalance
// @Summary      Get a customer's balance
// @Description  Outstanding charges by category and unapplied payment credit
// @Tags         customers
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[CustomerBalanceResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /customers/{id}/balance [get]
func (h *CustomerHandler) Balance(c *gin.Context) {
	tenantID, customerID, ok := h.scope(c)
	if !ok {
		return
	}
	balance, err := h.balances.CustomerBalance(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerBalanceResponse(balance))
}

// SweepCredit godoc
// @ID           sweepCustomerCredit
// @Summary      Apply held credit
// @Description  Apply the customer's unapplied payment credit to outstanding charges, oldest payment first
// @Tags         customers
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[CreditSweepResponse]
// @Success      207 {object} APIResponse[CreditSweepResponse] "Some payments failed"
// @Failure      400 {object} ErrorResponse
// @Router       /customers/{id}/credit-sweep [post]
func (h *CustomerHandler) SweepCredit(c *gin.Context) {
	tenantID, customerID, ok := h.scope(c)
	if !ok {
		return
	}
	result, err := h.sweeper.SweepCredit(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := toCreditSweepResponse(result)
	if failed := resp.failed(); failed > 0 {
		h.Partial(c, resp, fmt.Sprintf("%d payments failed", failed))
		return
	}
	h.Success(c, resp)
}

// Consistency godoc
// @ID           checkCustomerConsistency
// @Summary      Check ledger consistency
// @Description  Verify that charges, applications and payments add up. repair=true re-creates missing revenue postings.
// @Tags         customers
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Customer ID" format(uuid)
// @Param        repair query bool false "Re-create missing revenue postings"
// @Success      200 {object} APIResponse[ConsistencyResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /customers/{id}/consistency [get]
func (h *CustomerHandler) Consistency(c *gin.Context) {
	tenantID, customerID, ok := h.scope(c)
	if !ok {
		return
	}
	repair := false
	if raw := c.Query("repair"); raw != "" {
		var err error
		if repair, err = strconv.ParseBool(raw); err != nil {
			h.BadRequest(c, "repair must be a boolean")
			return
		}
	}
	report, err := h.checker.Check(c.Request.Context(), tenantID, customerID, repair)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toConsistencyResponse(report))
}
