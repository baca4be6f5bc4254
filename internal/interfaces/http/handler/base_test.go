package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/CortekUK/drive-247-sub002/internal/application/billing"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestRouter returns an engine that stamps the tenant the way the tenant
// middleware does
func newTestRouter(tenantID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if tenantID != uuid.Nil {
			c.Set(middleware.TenantIDKey, tenantID)
		}
		c.Set(middleware.RequestIDKey, "req-1")
		c.Next()
	})
	return r
}

var errGatewayRejected = shared.NewDomainError("GATEWAY_REJECTED", "Payment provider rejected the refund")

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the envelope and its data into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var raw struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return raw.Response
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Success(c, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestBaseHandlerCreated(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Created(c, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
	}{
		{"payment not found", ledger.ErrPaymentNotFound, http.StatusNotFound, dto.ErrCodePaymentNotFound},
		{"already processed", ledger.ErrAlreadyProcessed, http.StatusConflict, dto.ErrCodeAlreadyProcessed},
		{"constraint violation", ledger.ErrConstraintViolation, http.StatusUnprocessableEntity, dto.ErrCodeConstraintViolation},
		{"insufficient remaining", ledger.ErrInsufficientRemaining, http.StatusUnprocessableEntity, dto.ErrCodeConstraintViolation},
		{"refund exceeds payment", ledger.ErrRefundExceedsPayment, http.StatusUnprocessableEntity, dto.ErrCodeRefundExceedsPayment},
		{"allocation timeout", ledger.ErrAllocationTimeout, http.StatusServiceUnavailable, dto.ErrCodeAllocationTimeout},
		{"storage transient", shared.ErrStorageTransient, http.StatusServiceUnavailable, dto.ErrCodeStorageTransient},
		{"concurrency conflict", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"invalid signature", billing.ErrInvalidSignature, http.StatusBadRequest, dto.ErrCodeInvalidSignature},
		{"wrapped domain error", fmt.Errorf("load: %w", ledger.ErrChargeNotFound), http.StatusNotFound, dto.ErrCodeChargeNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDKey, "req-42")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			assert.Equal(t, "req-42", resp.RequestID)
			assert.Equal(t, tt.expectedErr, c.GetString(middleware.ErrorCodeKey))
		})
	}
}

func TestBaseHandlerHandleErrorKeepsDetail(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(c, ledger.ErrInvalidCategory.WithDetail("Bogus "))

	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInvalidCategory, resp.Error.Code)
	assert.Equal(t, "Bogus ", resp.Error.Detail)
}

func TestBaseHandlerHandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.HandleError(c, nil)

	assert.Empty(t, w.Body.Bytes())
}

func TestBaseHandlerHandleErrorWithData(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleErrorWithData(c, ledger.ErrAllocationTimeout, map[string]string{"id": "p-1"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"id": "p-1"}, resp.Data)
}

func TestBaseHandlerPartial(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.Partial(c, map[string]int{"failures": 2}, "2 postings failed")

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodePartialPostingFailure, resp.Error.Code)
	assert.Equal(t, "2 postings failed", resp.Error.Detail)
	assert.NotNil(t, resp.Data)
}

func TestBaseHandlerTenantRequired(t *testing.T) {
	h := &BaseHandler{}
	r := newTestRouter(uuid.Nil)
	r.GET("/things/:id", func(c *gin.Context) {
		if _, _, ok := h.scope(c); ok {
			c.Status(http.StatusOK)
		}
	})

	w := performJSON(r, http.MethodGet, "/things/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeTenantRequired, decodeResponse(t, w).Error.Code)
}

func TestBaseHandlerPathIDMustBeUUID(t *testing.T) {
	h := &BaseHandler{}
	r := newTestRouter(uuid.New())
	r.GET("/things/:id", func(c *gin.Context) {
		if _, _, ok := h.scope(c); ok {
			c.Status(http.StatusOK)
		}
	})

	w := performJSON(r, http.MethodGet, "/things/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
}
