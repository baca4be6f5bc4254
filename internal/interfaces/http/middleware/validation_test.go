package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deductionBody struct {
	Category string          `json:"category" binding:"required,ledger_category"`
	Amount   decimal.Decimal `json:"amount" binding:"required,money"`
	Targets  []string        `json:"target_categories" binding:"omitempty,max=3,dive,ledger_category"`
}

func newValidationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req deductionBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req.Amount.StringFixed(2)))
	})
	return router
}

func TestSetupValidator_LedgerTags(t *testing.T) {
	router := newValidationRouter(t)

	tests := []struct {
		name         string
		body         string
		expected     int
		expectFields []string
	}{
		{"valid", `{"category":"Security Deposit","amount":"12.50"}`, http.StatusOK, nil},
		{"numeric amount", `{"category":"Tax","amount":12.5}`, http.StatusOK, nil},
		{"custom category", `{"category":"Parking","amount":"1"}`, http.StatusOK, nil},
		{"three decimals", `{"category":"Tax","amount":"1.005"}`, http.StatusBadRequest, []string{"amount"}},
		{"trailing zero decimals", `{"category":"Tax","amount":"1.500"}`, http.StatusOK, nil},
		{"zero amount", `{"category":"Tax","amount":"0"}`, http.StatusBadRequest, []string{"amount"}},
		{"negative amount", `{"category":"Tax","amount":"-5"}`, http.StatusBadRequest, []string{"amount"}},
		{"padded category", `{"category":" Tax","amount":"5"}`, http.StatusBadRequest, []string{"category"}},
		{"oversized category", `{"category":"` + strings.Repeat("x", 65) + `","amount":"5"}`, http.StatusBadRequest, []string{"category"}},
		{"bad target", `{"category":"Tax","amount":"5","target_categories":["Tax",""]}`, http.StatusBadRequest, []string{"target_categories[1]"}},
		{"too many targets", `{"category":"Tax","amount":"5","target_categories":["A","B","C","D"]}`, http.StatusBadRequest, []string{"target_categories"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.expected, w.Code, w.Body.String())
			if tt.expectFields == nil {
				return
			}

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			var fields []string
			for _, f := range resp.Error.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.expectFields, fields)
		})
	}
}

func TestHandleValidationError_InvalidJSON(t *testing.T) {
	router := newValidationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Detail)
}

func TestGetValidationMessage(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterLedgerValidations(v))

	err := v.Struct(deductionBody{Category: "", Amount: decimal.RequireFromString("0.001")})
	require.Error(t, err)

	messages := map[string]string{}
	for _, fe := range err.(validator.ValidationErrors) {
		messages[fe.Field()] = getValidationMessage(fe)
	}
	assert.Equal(t, "This field is required", messages["category"])
	assert.Equal(t, "Must be a positive amount with at most 2 decimal places", messages["amount"])
}
