package handler

import "github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success   bool           `json:"ok"`
	Data      T              `json:"data,omitempty"`
	Error     *dto.ErrorInfo `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success   bool           `json:"ok" example:"false"`
	Error     *dto.ErrorInfo `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty" example:"2b0c6f0e-8c1e-4e0a-9a57-3f3f1c7b8f10"`
}
