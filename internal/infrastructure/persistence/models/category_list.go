package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// CategoryList stores an ordered list of categories as JSON
type CategoryList []string

// Value implements driver.Valuer
func (c CategoryList) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]string(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *CategoryList) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported CategoryList source %T", value)
	}
	if len(raw) == 0 {
		*c = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*c = out
	return nil
}

// GormDataType implements schema.GormDataTypeInterface
func (CategoryList) GormDataType() string {
	return "json"
}

// GormDBDataType picks jsonb on postgres and text elsewhere
func (CategoryList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// NewCategoryList converts domain categories
func NewCategoryList(categories []ledger.Category) CategoryList {
	if len(categories) == 0 {
		return nil
	}
	out := make(CategoryList, len(categories))
	for i, c := range categories {
		out[i] = c.String()
	}
	return out
}

// Categories converts back to domain categories
func (c CategoryList) Categories() []ledger.Category {
	if len(c) == 0 {
		return nil
	}
	out := make([]ledger.Category, len(c))
	for i, s := range c {
		out[i] = ledger.Category(s)
	}
	return out
}
