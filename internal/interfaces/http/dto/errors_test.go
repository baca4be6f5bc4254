package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeTenantRequired, http.StatusBadRequest},
		{ErrCodePaymentNotFound, http.StatusNotFound},
		{ErrCodeChargeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyProcessed, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeConstraintViolation, http.StatusUnprocessableEntity},
		{ErrCodeRefundExceedsPayment, http.StatusUnprocessableEntity},
		{ErrCodeInvalidAmount, http.StatusUnprocessableEntity},
		{ErrCodePartialPostingFailure, http.StatusMultiStatus},
		{ErrCodeStorageTransient, http.StatusServiceUnavailable},
		{ErrCodeAllocationTimeout, http.StatusServiceUnavailable},
		{ErrCodeGatewayRejected, http.StatusBadGateway},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PAYMENT_NOT_FOUND", ErrCodePaymentNotFound},
		{"CHARGE_NOT_FOUND", ErrCodeChargeNotFound},
		{"ALREADY_PROCESSED", ErrCodeAlreadyProcessed},
		{"CONSTRAINT_VIOLATION", ErrCodeConstraintViolation},
		{"INSUFFICIENT_REMAINING", ErrCodeConstraintViolation},
		{"STORAGE_TRANSIENT", ErrCodeStorageTransient},
		{"PARTIAL_POSTING_FAILURE", ErrCodePartialPostingFailure},
		{"ALLOCATION_TIMEOUT", ErrCodeAllocationTimeout},
		{"INVALID_AMOUNT", ErrCodeInvalidAmount},
		{"GATEWAY_REJECTED", ErrCodeGatewayRejected},
		// Already normalized codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		// Unknown codes pass through unchanged
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestDomainCodesHaveStatus(t *testing.T) {
	for domainCode, code := range DomainErrorCodeMapping {
		t.Run(domainCode, func(t *testing.T) {
			_, ok := ErrorCodeHTTPStatus[code]
			assert.True(t, ok, "error code %s should be in ErrorCodeHTTPStatus map", code)
			assert.True(t, strings.HasPrefix(code, "ERR_"))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("PAYMENT_NOT_FOUND", "Payment not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePaymentNotFound, resp.Error.Code)
	assert.Equal(t, "Payment not found", resp.Error.Message)
}

func TestNewPartialResponse(t *testing.T) {
	data := map[string]string{"allocated": "40.00"}
	resp := NewPartialResponse(data, "PARTIAL_POSTING_FAILURE", "Some ledger postings failed", "Tax: storage unavailable", "req-1")

	assert.False(t, resp.Success)
	assert.Equal(t, data, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePartialPostingFailure, resp.Error.Code)
	assert.Equal(t, "Tax: storage unavailable", resp.Error.Detail)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "amount", Message: "Must be a positive amount with at most 2 decimal places"},
		{Field: "category", Message: "Invalid ledger category"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.RequestID)
	require.Len(t, resp.Error.Fields, 2)
	assert.Equal(t, "amount", resp.Error.Fields[0].Field)
}

func TestResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Payment not found", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, false, raw["ok"])
	assert.Equal(t, "req-test-123", raw["request_id"])
	assert.NotContains(t, raw, "data")

	errBody, ok := raw["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, errBody["code"])
	assert.NotContains(t, errBody, "detail")
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]int{"count": 1})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":{"count":1}}`, string(data))
}
