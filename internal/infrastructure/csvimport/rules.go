package csvimport

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType is the expected shape of a cell
type FieldType string

const (
	TypeString FieldType = "string"
	TypeMoney  FieldType = "money"
	TypeDate   FieldType = "date"
	TypeUUID   FieldType = "uuid"
)

// DateLayouts are the accepted date formats, ISO first then UK day-first
var DateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// FieldRule constrains one column
type FieldRule struct {
	Column    string
	Required  bool
	Type      FieldType
	MaxLength int
	Positive  bool
	Unique    bool
	Check     func(value string) error
}

// FieldRuleBuilder builds a FieldRule fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Money accepts a decimal with at most two fractional digits
func (b *FieldRuleBuilder) Money() *FieldRuleBuilder {
	b.rule.Type = TypeMoney
	return b
}

func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

func (b *FieldRuleBuilder) UUID() *FieldRuleBuilder {
	b.rule.Type = TypeUUID
	return b
}

// MaxLength limits the value length in characters
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Positive rejects zero and negative money
func (b *FieldRuleBuilder) Positive() *FieldRuleBuilder {
	b.rule.Positive = true
	return b
}

// Unique rejects a value repeated within the same file
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// Check adds a custom predicate run after the type check
func (b *FieldRuleBuilder) Check(fn func(value string) error) *FieldRuleBuilder {
	b.rule.Check = fn
	return b
}

func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// ParseMoney parses a money cell, allowing a leading currency symbol and
// thousands separators
func ParseMoney(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimLeft(strings.TrimSpace(value), "£$€")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", value)
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("%q has more than two decimal places", value)
	}
	return amount.Round(2), nil
}

// ParseDate parses a date cell using DateLayouts
func ParseDate(value string) (time.Time, error) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date (use YYYY-MM-DD or DD/MM/YYYY)", value)
}

// check validates a non-empty value against the rule
func (r FieldRule) check(value string) (code, message string) {
	if r.MaxLength > 0 && utf8.RuneCountInString(value) > r.MaxLength {
		return CodeTooLong, fmt.Sprintf("must be at most %d characters", r.MaxLength)
	}

	switch r.Type {
	case TypeMoney:
		amount, err := ParseMoney(value)
		if err != nil {
			return CodeInvalidFormat, err.Error()
		}
		if r.Positive && !amount.IsPositive() {
			return CodeInvalidValue, "must be greater than zero"
		}
	case TypeDate:
		if _, err := ParseDate(value); err != nil {
			return CodeInvalidFormat, err.Error()
		}
	case TypeUUID:
		if _, err := uuid.Parse(value); err != nil {
			return CodeInvalidFormat, fmt.Sprintf("%q is not a valid UUID", value)
		}
	}

	if r.Check != nil {
		if err := r.Check(value); err != nil {
			return CodeInvalidValue, err.Error()
		}
	}
	return "", ""
}
