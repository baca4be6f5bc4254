package handler

import (
	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Money is rendered as a fixed two-decimal string so no client parses it
// into a float.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyMap(m map[ledger.Category]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(m))
	for c, d := range m {
		out[c.String()] = money(d)
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// PaymentResponse represents a payment in API responses
// @Description Payment details returned by the API
type PaymentResponse struct {
	ID               string   `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TenantID         string   `json:"tenantId" example:"550e8400-e29b-41d4-a716-446655440001"`
	CustomerID       string   `json:"customerId" example:"550e8400-e29b-41d4-a716-446655440002"`
	RentalID         string   `json:"rentalId,omitempty" example:"550e8400-e29b-41d4-a716-446655440003"`
	Amount           string   `json:"amount" example:"250.00"`
	PaymentType      string   `json:"paymentType" example:"Payment" enums:"Payment,InitialFee,Fine,Deposit,Extension"`
	Method           string   `json:"method,omitempty" example:"card"`
	Status           string   `json:"status" example:"Applied" enums:"Pending,Applied,Partial,Credit,Refunded,Partial Refund"`
	RemainingAmount  string   `json:"remainingAmount" example:"0.00"`
	RefundAmount     string   `json:"refundAmount" example:"0.00"`
	RefundStatus     string   `json:"refundStatus" example:"None" enums:"None,Partial,Full"`
	TargetCategories []string `json:"targetCategories,omitempty"`
	PaymentDate      string   `json:"paymentDate" example:"2026-01-24"`
	ExternalRef      string   `json:"externalRef,omitempty" example:"pi_3Nx"`
	CreatedAt        string   `json:"createdAt" example:"2026-01-24T12:00:00Z"`
	UpdatedAt        string   `json:"updatedAt" example:"2026-01-24T12:00:00Z"`
	Version          int      `json:"version" example:"1"`
}

func toPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID.String(),
		TenantID:         p.TenantID.String(),
		CustomerID:       p.CustomerID.String(),
		RentalID:         uuidString(p.RentalID),
		Amount:           money(p.Amount),
		PaymentType:      string(p.PaymentType),
		Method:           p.Method,
		Status:           p.Status.String(),
		RemainingAmount:  money(p.RemainingAmount),
		RefundAmount:     money(p.RefundAmount),
		RefundStatus:     string(p.RefundStatus),
		TargetCategories: categoryNames(p.TargetCategories),
		PaymentDate:      formatDate(p.PaymentDate),
		ExternalRef:      p.ExternalRef,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
		Version:          p.Version,
	}
}

// ApplicationResponse is one (charge, amount) step of an allocation
// @Description Amount applied to one charge
type ApplicationResponse struct {
	ChargeID string `json:"chargeId"`
	Category string `json:"category" example:"Rental"`
	Amount   string `json:"amount" example:"100.00"`
}

// AllocationFailureResponse is a charge or category the allocation skipped
// @Description Posting that failed during allocation
type AllocationFailureResponse struct {
	ChargeID string `json:"chargeId,omitempty"`
	Category string `json:"category" example:"Tax"`
	Amount   string `json:"amount" example:"20.00"`
	Applied  bool   `json:"applied"`
	Error    string `json:"error"`
}

// AllocationResponse is the outcome of applying a payment
// @Description Allocation outcome. allocated is the payment's lifetime total.
type AllocationResponse struct {
	PaymentID    string                      `json:"paymentId"`
	Allocated    string                      `json:"allocated" example:"150.00"`
	Remaining    string                      `json:"remaining" example:"0.00"`
	Status       string                      `json:"status" example:"Applied"`
	Applications []ApplicationResponse       `json:"applications"`
	Failures     []AllocationFailureResponse `json:"failures,omitempty"`
	Concurrent   bool                        `json:"concurrent,omitempty"`
}

func toAllocationResponse(r *appledger.ProcessResult) *AllocationResponse {
	if r == nil {
		return nil
	}
	resp := &AllocationResponse{
		PaymentID:    r.PaymentID.String(),
		Allocated:    money(r.Allocated),
		Remaining:    money(r.Remaining),
		Status:       r.Status.String(),
		Applications: make([]ApplicationResponse, 0, len(r.Applications)),
		Concurrent:   r.Concurrent,
	}
	for _, a := range r.Applications {
		resp.Applications = append(resp.Applications, ApplicationResponse{
			ChargeID: a.ChargeID.String(),
			Category: a.Category.String(),
			Amount:   money(a.Amount),
		})
	}
	for _, f := range r.Failures {
		failure := AllocationFailureResponse{
			Category: f.Category.String(),
			Amount:   money(f.Amount),
			Applied:  f.Applied,
		}
		if f.ChargeID != uuid.Nil {
			failure.ChargeID = f.ChargeID.String()
		}
		if f.Err != nil {
			failure.Error = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, failure)
	}
	return resp
}

// RecordPaymentResponse is a stored payment with its optional allocation
// @Description Recorded payment and, when apply was set, its allocation
type RecordPaymentResponse struct {
	Payment    PaymentResponse     `json:"payment"`
	Allocation *AllocationResponse `json:"allocation,omitempty"`
}

// PaymentApplicationResponse links a payment to a charge it settled
// @Description Stored payment application
type PaymentApplicationResponse struct {
	ID            string `json:"id"`
	ChargeID      string `json:"chargeId"`
	AmountApplied string `json:"amountApplied" example:"100.00"`
	CreatedAt     string `json:"createdAt"`
}

// PaymentDetailResponse is a payment with its applications and refunds
// @Description Payment with applications and refunded amounts per category
type PaymentDetailResponse struct {
	Payment            PaymentResponse              `json:"payment"`
	Applications       []PaymentApplicationResponse `json:"applications"`
	RefundedByCategory map[string]string            `json:"refundedByCategory,omitempty"`
}

func toPaymentDetailResponse(d *appledger.PaymentDetail) PaymentDetailResponse {
	resp := PaymentDetailResponse{
		Payment:      toPaymentResponse(d.Payment),
		Applications: make([]PaymentApplicationResponse, 0, len(d.Applications)),
	}
	for _, a := range d.Applications {
		resp.Applications = append(resp.Applications, PaymentApplicationResponse{
			ID:            a.ID.String(),
			ChargeID:      a.ChargeEntryID.String(),
			AmountApplied: money(a.AmountApplied),
			CreatedAt:     formatTime(a.CreatedAt),
		})
	}
	if len(d.RefundedByCategory) > 0 {
		resp.RefundedByCategory = moneyMap(d.RefundedByCategory)
	}
	return resp
}

// RefundShareResponse is the part of a refund attributed to one category
// @Description Refund share of one invoice category
type RefundShareResponse struct {
	Category      string `json:"category" example:"Rental"`
	InvoiceAmount string `json:"invoiceAmount" example:"300.00"`
	Amount        string `json:"amount" example:"75.00"`
}

// RefundResponse is the outcome of a refund
// @Description Refund outcome with the ledger rows it wrote
type RefundResponse struct {
	PaymentID      string                `json:"paymentId"`
	Amount         string                `json:"amount" example:"100.00"`
	StripeRefundID string                `json:"stripeRefundId,omitempty" example:"re_3Nx"`
	LedgerEntryIDs []string              `json:"ledgerEntryIds"`
	Shares         []RefundShareResponse `json:"shares"`
	Status         string                `json:"status" example:"Partial Refund"`
	RefundStatus   string                `json:"refundStatus" example:"Partial"`
	Replayed       bool                  `json:"replayed,omitempty"`
}

func toRefundResponse(r *appledger.RefundResult) RefundResponse {
	resp := RefundResponse{
		PaymentID:      r.PaymentID.String(),
		Amount:         money(r.Amount),
		StripeRefundID: r.StripeRefundID,
		LedgerEntryIDs: uuidStrings(r.LedgerEntryIDs),
		Shares:         make([]RefundShareResponse, 0, len(r.Shares)),
		Status:         r.Status.String(),
		RefundStatus:   string(r.RefundStatus),
		Replayed:       r.Replayed,
	}
	for _, s := range r.Shares {
		resp.Shares = append(resp.Shares, RefundShareResponse{
			Category:      s.Category.String(),
			InvoiceAmount: money(s.InvoiceAmount),
			Amount:        money(s.Amount),
		})
	}
	return resp
}

// DeductionResponse is the outcome of a deposit deduction
// @Description Deposit deduction outcome
type DeductionResponse struct {
	ChargeID     string `json:"chargeId"`
	EntryID      string `json:"entryId"`
	NewRemaining string `json:"newRemaining" example:"50.00"`
}

// LedgerEntryResponse represents a ledger row in API responses
// @Description Ledger entry. Charges are positive, payments and refunds negative.
type LedgerEntryResponse struct {
	ID              string `json:"id"`
	RentalID        string `json:"rentalId,omitempty"`
	CustomerID      string `json:"customerId,omitempty"`
	VehicleID       string `json:"vehicleId,omitempty"`
	Type            string `json:"type" example:"Charge" enums:"Charge,Payment,Refund,Adjustment"`
	Category        string `json:"category" example:"Rental"`
	Amount          string `json:"amount" example:"300.00"`
	RemainingAmount string `json:"remainingAmount" example:"0.00"`
	EntryDate       string `json:"entryDate" example:"2026-01-24"`
	DueDate         string `json:"dueDate,omitempty" example:"2026-02-24"`
	Reference       string `json:"reference,omitempty"`
	PaymentID       string `json:"paymentId,omitempty"`
	TargetChargeID  string `json:"targetChargeId,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func toLedgerEntryResponse(e *ledger.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:              e.ID.String(),
		RentalID:        uuidString(e.RentalID),
		CustomerID:      uuidString(e.CustomerID),
		VehicleID:       uuidString(e.VehicleID),
		Type:            e.Type.String(),
		Category:        e.Category.String(),
		Amount:          money(e.Amount),
		RemainingAmount: money(e.RemainingAmount),
		EntryDate:       formatDate(e.EntryDate),
		DueDate:         formatOptionalDate(e.DueDate),
		Reference:       e.Reference,
		PaymentID:       uuidString(e.PaymentID),
		TargetChargeID:  uuidString(e.TargetChargeID),
		CreatedAt:       formatTime(e.CreatedAt),
	}
}

func toLedgerEntryResponses(entries []*ledger.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLedgerEntryResponse(e))
	}
	return out
}

// ReverseChargeResponse reports what a charge reversal undid
// @Description Charge reversal outcome
type ReverseChargeResponse struct {
	ChargeID         string   `json:"chargeId"`
	RestoredCredit   string   `json:"restoredCredit" example:"100.00"`
	AffectedPayments []string `json:"affectedPayments"`
}

// ChargeImportRowError is a rejected row of a charge file
// @Description Row level import problem
type ChargeImportRowError struct {
	Line    int    `json:"line" example:"4"`
	Column  string `json:"column,omitempty" example:"amount"`
	Value   string `json:"value,omitempty" example:"-5"`
	Code    string `json:"code" example:"INVALID_VALUE"`
	Message string `json:"message" example:"must be greater than zero"`
}

// ChargeImportResponse reports a bulk charge upload
// @Description Charge file import outcome
type ChargeImportResponse struct {
	DryRun          bool                   `json:"dryRun"`
	TotalRows       int                    `json:"totalRows" example:"120"`
	ValidRows       int                    `json:"validRows" example:"118"`
	Imported        int                    `json:"imported" example:"118"`
	ChargeIDs       []string               `json:"chargeIds"`
	Errors          []ChargeImportRowError `json:"errors"`
	ErrorsTruncated bool                   `json:"errorsTruncated"`
}

func toChargeImportResponse(r *appledger.ChargeImportResult) ChargeImportResponse {
	out := ChargeImportResponse{
		DryRun:          r.DryRun,
		TotalRows:       r.TotalRows,
		ValidRows:       r.ValidRows,
		Imported:        r.Imported,
		ChargeIDs:       uuidStrings(r.ChargeIDs),
		Errors:          make([]ChargeImportRowError, 0, len(r.Errors)),
		ErrorsTruncated: r.Truncated,
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, ChargeImportRowError{
			Line:    e.Line,
			Column:  e.Column,
			Value:   e.Value,
			Code:    e.Code,
			Message: e.Message,
		})
	}
	return out
}

// CustomerBalanceResponse summarises what a customer owes and holds
// @Description Outstanding charges and unapplied credit of a customer
type CustomerBalanceResponse struct {
	CustomerID            string                `json:"customerId"`
	Outstanding           string                `json:"outstanding" example:"120.00"`
	OutstandingByCategory map[string]string     `json:"outstandingByCategory"`
	Charges               []LedgerEntryResponse `json:"charges"`
	Credit                string                `json:"credit" example:"0.00"`
	CreditPayments        []PaymentResponse     `json:"creditPayments"`
}

func toCustomerBalanceResponse(b *appledger.CustomerBalance) CustomerBalanceResponse {
	resp := CustomerBalanceResponse{
		CustomerID:            b.CustomerID.String(),
		Outstanding:           money(b.Outstanding),
		OutstandingByCategory: moneyMap(b.OutstandingCategory),
		Charges:               toLedgerEntryResponses(b.Charges),
		Credit:                money(b.Credit),
		CreditPayments:        make([]PaymentResponse, 0, len(b.CreditPayments)),
	}
	for _, p := range b.CreditPayments {
		resp.CreditPayments = append(resp.CreditPayments, toPaymentResponse(p))
	}
	return resp
}

// PnLEntryResponse represents a profitability posting
// @Description Revenue or cost posting
type PnLEntryResponse struct {
	ID            string `json:"id"`
	PaymentID     string `json:"paymentId,omitempty"`
	ChargeEntryID string `json:"chargeEntryId,omitempty"`
	Side          string `json:"side" example:"Revenue" enums:"Revenue,Cost"`
	Category      string `json:"category" example:"Rental"`
	Amount        string `json:"amount" example:"100.00"`
	EntryDate     string `json:"entryDate" example:"2026-01-24"`
	Reference     string `json:"reference"`
}

// InvoiceResponse represents a rental invoice snapshot
// @Description Invoice amounts per category
type InvoiceResponse struct {
	ID               string `json:"id"`
	InvoiceNumber    string `json:"invoiceNumber" example:"INV-0001"`
	RentalFee        string `json:"rentalFee" example:"300.00"`
	Tax              string `json:"tax" example:"60.00"`
	ServiceFee       string `json:"serviceFee" example:"10.00"`
	SecurityDeposit  string `json:"securityDeposit" example:"200.00"`
	DeliveryFee      string `json:"deliveryFee" example:"0.00"`
	CollectionFee    string `json:"collectionFee" example:"0.00"`
	Extras           string `json:"extras" example:"0.00"`
	InsurancePremium string `json:"insurancePremium" example:"25.00"`
	IssuedAt         string `json:"issuedAt"`
	DueDate          string `json:"dueDate,omitempty"`
}

// RentalLedgerResponse is every ledger row and posting of a rental
// @Description Ledger rows, revenue postings and invoice of a rental
type RentalLedgerResponse struct {
	RentalID string                `json:"rentalId"`
	Entries  []LedgerEntryResponse `json:"entries"`
	PnL      []PnLEntryResponse    `json:"pnl"`
	Invoice  *InvoiceResponse      `json:"invoice,omitempty"`
}

func toRentalLedgerResponse(l *appledger.RentalLedger) RentalLedgerResponse {
	resp := RentalLedgerResponse{
		RentalID: l.RentalID.String(),
		Entries:  toLedgerEntryResponses(l.Entries),
		PnL:      make([]PnLEntryResponse, 0, len(l.PnL)),
	}
	for _, p := range l.PnL {
		resp.PnL = append(resp.PnL, PnLEntryResponse{
			ID:            p.ID.String(),
			PaymentID:     uuidString(p.PaymentID),
			ChargeEntryID: uuidString(p.ChargeEntryID),
			Side:          string(p.Side),
			Category:      p.Category.String(),
			Amount:        money(p.Amount),
			EntryDate:     formatDate(p.EntryDate),
			Reference:     p.Reference,
		})
	}
	if inv := l.Invoice; inv != nil {
		resp.Invoice = &InvoiceResponse{
			ID:               inv.ID.String(),
			InvoiceNumber:    inv.InvoiceNumber,
			RentalFee:        money(inv.RentalFee),
			Tax:              money(inv.Tax),
			ServiceFee:       money(inv.ServiceFee),
			SecurityDeposit:  money(inv.SecurityDeposit),
			DeliveryFee:      money(inv.DeliveryFee),
			CollectionFee:    money(inv.CollectionFee),
			Extras:           money(inv.Extras),
			InsurancePremium: money(inv.InsurancePremium),
			IssuedAt:         formatTime(inv.IssuedAt),
			DueDate:          formatOptionalDate(inv.DueDate),
		}
	}
	return resp
}

// CreditSweepPaymentResponse is what a sweep did with one payment
// @Description Credit applied from one payment
type CreditSweepPaymentResponse struct {
	PaymentID string `json:"paymentId"`
	Applied   string `json:"applied" example:"40.00"`
	Remaining string `json:"remaining" example:"10.00"`
	Status    string `json:"status,omitempty" example:"Partial"`
	Error     string `json:"error,omitempty"`
}

// CreditSweepResponse is the outcome of a credit sweep
// @Description Credit sweep outcome
type CreditSweepResponse struct {
	CustomerID string                       `json:"customerId"`
	Allocated  string                       `json:"allocated" example:"40.00"`
	Payments   []CreditSweepPaymentResponse `json:"payments"`
}

func toCreditSweepResponse(r *appledger.CreditSweepResult) CreditSweepResponse {
	resp := CreditSweepResponse{
		CustomerID: r.CustomerID.String(),
		Allocated:  money(r.Allocated),
		Payments:   make([]CreditSweepPaymentResponse, 0, len(r.Payments)),
	}
	for _, p := range r.Payments {
		item := CreditSweepPaymentResponse{
			PaymentID: p.PaymentID.String(),
			Applied:   money(p.Applied),
			Remaining: money(p.Remaining),
			Status:    p.Status.String(),
		}
		if p.Err != nil {
			item.Error = p.Err.Error()
		}
		resp.Payments = append(resp.Payments, item)
	}
	return resp
}

func (r CreditSweepResponse) failed() int {
	n := 0
	for _, p := range r.Payments {
		if p.Error != "" {
			n++
		}
	}
	return n
}

// ChargeDiscrepancyResponse is a charge whose settlement does not add up
// @Description Charge discrepancy
type ChargeDiscrepancyResponse struct {
	ChargeID  string `json:"chargeId"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Remaining string `json:"remaining"`
	Applied   string `json:"applied"`
	Deducted  string `json:"deducted"`
}

// PaymentDiscrepancyResponse is a payment whose allocation does not add up
// @Description Payment discrepancy
type PaymentDiscrepancyResponse struct {
	PaymentID string `json:"paymentId"`
	Amount    string `json:"amount"`
	Applied   string `json:"applied"`
	Remaining string `json:"remaining"`
}

// ConsistencyResponse lists what a consistency check found
// @Description Consistency check report
type ConsistencyResponse struct {
	CustomerID      string                       `json:"customerId"`
	Consistent      bool                         `json:"consistent"`
	ChargesChecked  int                          `json:"chargesChecked"`
	PaymentsChecked int                          `json:"paymentsChecked"`
	Charges         []ChargeDiscrepancyResponse  `json:"charges"`
	Payments        []PaymentDiscrepancyResponse `json:"payments"`
	MissingRevenue  []string                     `json:"missingRevenue"`
	RevenueRepaired int                          `json:"revenueRepaired"`
}

func toConsistencyResponse(r *appledger.ConsistencyReport) ConsistencyResponse {
	resp := ConsistencyResponse{
		CustomerID:      r.CustomerID.String(),
		Consistent:      r.Consistent(),
		ChargesChecked:  r.ChargesChecked,
		PaymentsChecked: r.PaymentsChecked,
		Charges:         make([]ChargeDiscrepancyResponse, 0, len(r.Charges)),
		Payments:        make([]PaymentDiscrepancyResponse, 0, len(r.Payments)),
		MissingRevenue:  uuidStrings(r.MissingRevenue),
		RevenueRepaired: r.RevenueRepaired,
	}
	for _, d := range r.Charges {
		resp.Charges = append(resp.Charges, ChargeDiscrepancyResponse{
			ChargeID:  d.ChargeID.String(),
			Category:  d.Category.String(),
			Amount:    money(d.Amount),
			Remaining: money(d.Remaining),
			Applied:   money(d.Applied),
			Deducted:  money(d.Deducted),
		})
	}
	for _, d := range r.Payments {
		resp.Payments = append(resp.Payments, PaymentDiscrepancyResponse{
			PaymentID: d.PaymentID.String(),
			Amount:    money(d.Amount),
			Applied:   money(d.Applied),
			Remaining: money(d.Remaining),
		})
	}
	return resp
}
