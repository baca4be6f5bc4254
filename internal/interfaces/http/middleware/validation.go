package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Custom validation tags
const (
	TagLedgerCategory = "ledger_category"
	TagMoney          = "money"
)

// SetupValidator configures gin's validator: JSON field names in errors,
// decimal.Decimal validated as its string form, and the ledger tags.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return RegisterLedgerValidations(v)
}

// RegisterLedgerValidations installs the ledger tags on v
func RegisterLedgerValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation(TagLedgerCategory, validateLedgerCategory); err != nil {
		return err
	}
	return v.RegisterValidation(TagMoney, validateMoney)
}

// validateLedgerCategory accepts any storable category name
func validateLedgerCategory(fl validator.FieldLevel) bool {
	return ledger.Category(fl.Field().String()).IsValid()
}

// validateMoney accepts positive amounts with at most two decimal places
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(d.Round(2))
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 for a failed bind. Malformed JSON
// gets ERR_INVALID_JSON, everything else the field list.
func HandleValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.Set(ErrorCodeKey, dto.ErrCodeInvalidJSON)
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", GetRequestID(c))
		resp.Error.Detail = err.Error()
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return
	}
	c.Set(ErrorCodeKey, dto.ErrCodeValidation)
	c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case TagMoney:
		return "Must be a positive amount with at most 2 decimal places"
	case TagLedgerCategory:
		return "Invalid ledger category"
	case "uuid", "uuid4":
		return "Invalid UUID format"
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must have at most " + e.Param() + " items"
		}
		return "Must be at most " + e.Param()
	case "min":
		return "Must be at least " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "dive":
		return "Invalid item"
	default:
		return "Invalid value"
	}
}
