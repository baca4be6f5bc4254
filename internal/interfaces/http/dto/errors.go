package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput     = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge  = "ERR_REQUEST_TOO_LARGE"
	ErrCodeTenantRequired   = "ERR_TENANT_REQUIRED"
	ErrCodeInvalidTenant    = "ERR_INVALID_TENANT"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
	ErrCodeInvalidImport    = "ERR_INVALID_IMPORT_FILE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodePaymentNotFound     = "ERR_PAYMENT_NOT_FOUND"
	ErrCodeChargeNotFound      = "ERR_CHARGE_NOT_FOUND"
	ErrCodeInvoiceNotFound     = "ERR_INVOICE_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeDuplicateEntry      = "ERR_DUPLICATE_ENTRY"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeAlreadyProcessed    = "ERR_ALREADY_PROCESSED"
)

// Ledger rule error codes
const (
	ErrCodeInvalidState          = "ERR_INVALID_STATE"
	ErrCodeInvalidAmount         = "ERR_INVALID_AMOUNT"
	ErrCodeInvalidCategory       = "ERR_INVALID_CATEGORY"
	ErrCodeConstraintViolation   = "ERR_CONSTRAINT_VIOLATION"
	ErrCodeRefundExceedsPayment  = "ERR_REFUND_EXCEEDS_PAYMENT"
	ErrCodePartialPostingFailure = "ERR_PARTIAL_POSTING_FAILURE"
)

// Availability error codes
const (
	ErrCodeStorageTransient  = "ERR_STORAGE_TRANSIENT"
	ErrCodeAllocationTimeout = "ERR_ALLOCATION_TIMEOUT"
	ErrCodeGatewayRejected   = "ERR_GATEWAY_REJECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeTenantRequired:   http.StatusBadRequest,
	ErrCodeInvalidTenant:    http.StatusBadRequest,
	ErrCodeInvalidSignature: http.StatusBadRequest,
	ErrCodeInvalidImport:    http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodePaymentNotFound:     http.StatusNotFound,
	ErrCodeChargeNotFound:      http.StatusNotFound,
	ErrCodeInvoiceNotFound:     http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeDuplicateEntry:      http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeAlreadyProcessed:    http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeInvalidAmount:        http.StatusUnprocessableEntity,
	ErrCodeInvalidCategory:      http.StatusUnprocessableEntity,
	ErrCodeConstraintViolation:  http.StatusUnprocessableEntity,
	ErrCodeRefundExceedsPayment: http.StatusUnprocessableEntity,
	// The body still carries what was posted
	ErrCodePartialPostingFailure: http.StatusMultiStatus,

	ErrCodeStorageTransient:  http.StatusServiceUnavailable,
	ErrCodeAllocationTimeout: http.StatusServiceUnavailable,
	ErrCodeGatewayRejected:   http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the ERR_* codes
// exposed over HTTP
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_CUSTOMER":        ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":    ErrCodeConcurrencyConflict,
	"STORAGE_TRANSIENT":       ErrCodeStorageTransient,
	"PAYMENT_NOT_FOUND":       ErrCodePaymentNotFound,
	"CHARGE_NOT_FOUND":        ErrCodeChargeNotFound,
	"INVOICE_NOT_FOUND":       ErrCodeInvoiceNotFound,
	"ALREADY_PROCESSED":       ErrCodeAlreadyProcessed,
	"CONSTRAINT_VIOLATION":    ErrCodeConstraintViolation,
	"INSUFFICIENT_REMAINING":  ErrCodeConstraintViolation,
	"PARTIAL_POSTING_FAILURE": ErrCodePartialPostingFailure,
	"ALLOCATION_TIMEOUT":      ErrCodeAllocationTimeout,
	"INVALID_AMOUNT":          ErrCodeInvalidAmount,
	"INVALID_CATEGORY":        ErrCodeInvalidCategory,
	"REFUND_EXCEEDS_PAYMENT":  ErrCodeRefundExceedsPayment,
	"DUPLICATE_ENTRY":         ErrCodeDuplicateEntry,
	"GATEWAY_REJECTED":        ErrCodeGatewayRejected,
	"INVALID_SIGNATURE":       ErrCodeInvalidSignature,
	"INVALID_IMPORT_FILE":     ErrCodeInvalidImport,
}

// NormalizeErrorCode converts a domain error code to the ERR_* format.
// Codes that are already normalized or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
