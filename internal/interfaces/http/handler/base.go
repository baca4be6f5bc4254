package handler

import (
	"errors"
	"net/http"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/logger"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// Partial sends a result that was only partly posted, with 207 and ok=false
func (h *BaseHandler) Partial(c *gin.Context, data any, detail string) {
	c.Set(middleware.ErrorCodeKey, dto.ErrCodePartialPostingFailure)
	c.JSON(http.StatusMultiStatus, dto.NewPartialResponse(data,
		dto.ErrCodePartialPostingFailure, "Some ledger postings failed", detail, middleware.GetRequestID(c)))
}

// HandleError converts domain errors to HTTP responses. Anything that is not
// a DomainError is logged and answered with ERR_INTERNAL.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.HandleErrorWithData(c, err, nil)
}

// HandleErrorWithData is HandleError for failures that still leave
// something the caller must see, such as a payment stored before its
// allocation failed
func (h *BaseHandler) HandleErrorWithData(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}

	var resp dto.Response
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		resp = dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, middleware.GetRequestID(c))
		resp.Error.Detail = domainErr.Detail
	} else {
		logger.FromContext(c.Request.Context()).Error("Unhandled request error",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		resp = dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "An unexpected error occurred", middleware.GetRequestID(c))
	}
	resp.Data = data
	c.Set(middleware.ErrorCodeKey, resp.Error.Code)
	c.JSON(dto.GetHTTPStatus(resp.Error.Code), resp)
}

// tenantID returns the tenant set by the tenant middleware, answering the
// request itself when it is missing
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetTenantUUID(c)
	if !ok {
		h.ErrorWithCode(c, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
	}
	return id, ok
}

// pathID binds and parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the body, answering with a validation error on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// scope returns the tenant and :id of a tenant-scoped resource request
func (h *BaseHandler) scope(c *gin.Context) (tenantID, id uuid.UUID, ok bool) {
	if tenantID, ok = h.tenantID(c); !ok {
		return
	}
	id, ok = h.pathID(c)
	return
}
