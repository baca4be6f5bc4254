package ledger

import "github.com/CortekUK/drive-247-sub002/internal/domain/shared"

// Error codes shared with the HTTP layer
const (
	CodePaymentNotFound       = "PAYMENT_NOT_FOUND"
	CodeChargeNotFound        = "CHARGE_NOT_FOUND"
	CodeInvoiceNotFound       = "INVOICE_NOT_FOUND"
	CodeAlreadyProcessed      = "ALREADY_PROCESSED"
	CodeConstraintViolation   = "CONSTRAINT_VIOLATION"
	CodeInsufficientRemaining = "INSUFFICIENT_REMAINING"
	CodePartialPostingFailure = "PARTIAL_POSTING_FAILURE"
	CodeAllocationTimeout     = "ALLOCATION_TIMEOUT"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeInvalidCategory       = "INVALID_CATEGORY"
	CodeRefundExceedsPayment  = "REFUND_EXCEEDS_PAYMENT"
	CodeDuplicateEntry        = "DUPLICATE_ENTRY"
)

var (
	ErrPaymentNotFound       = shared.NewDomainError(CodePaymentNotFound, "Payment not found")
	ErrChargeNotFound        = shared.NewDomainError(CodeChargeNotFound, "Charge not found")
	ErrInvoiceNotFound       = shared.NewDomainError(CodeInvoiceNotFound, "Invoice not found")
	ErrAlreadyProcessed      = shared.NewDomainError(CodeAlreadyProcessed, "Payment is already being allocated")
	ErrConstraintViolation   = shared.NewDomainError(CodeConstraintViolation, "Ledger constraint violated")
	ErrInsufficientRemaining = shared.NewDomainError(CodeInsufficientRemaining, "Charge remaining amount is lower than the requested decrement")
	ErrPartialPostingFailure = shared.NewDomainError(CodePartialPostingFailure, "Some ledger postings failed")
	ErrAllocationTimeout     = shared.NewDomainError(CodeAllocationTimeout, "Timed out waiting for a concurrent allocation to finish")
	ErrInvalidAmount         = shared.NewDomainError(CodeInvalidAmount, "Amount must be positive")
	ErrInvalidCategory       = shared.NewDomainError(CodeInvalidCategory, "Invalid ledger category")
	ErrRefundExceedsPayment  = shared.NewDomainError(CodeRefundExceedsPayment, "Refund exceeds the refundable amount of the payment")
	ErrDuplicateEntry        = shared.NewDomainError(CodeDuplicateEntry, "Ledger entry already exists")
)
