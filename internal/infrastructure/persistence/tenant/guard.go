package tenant

import (
	"strings"

	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Guard is a set of GORM callbacks that keep statements on tenant tables
// inside a single tenant
type Guard struct {
	required bool
}

// NewGuard creates a guard. When required is true a statement with no
// tenant filter and no tenant in its context fails with ErrTenantIDRequired.
func NewGuard(required bool) *Guard {
	return &Guard{required: required}
}

// Register installs the guard on query, row, update and delete processors
func (g *Guard) Register(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant:guard_query", g.apply); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant:guard_row", g.apply); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", g.apply); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", g.apply)
}

func (g *Guard) apply(db *gorm.DB) {
	stmt := db.Statement
	if stmt.Unscoped || stmt.Schema == nil || stmt.Schema.LookUpField(Column) == nil {
		return
	}
	if hasTenantCondition(stmt) {
		return
	}

	raw := ""
	if stmt.Context != nil {
		raw = logger.GetTenantID(stmt.Context)
	}
	if raw == "" {
		if g.required {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: Column}, Value: tenantID},
	}})
}

func hasTenantCondition(stmt *gorm.Statement) bool {
	c, ok := stmt.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if exprMentionsTenant(expr) {
			return true
		}
	}
	return false
}

func exprMentionsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return columnIsTenant(e.Column)
	case clause.IN:
		return columnIsTenant(e.Column)
	case clause.Expr:
		return strings.Contains(e.SQL, Column)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, Column)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if exprMentionsTenant(cond) {
				return true
			}
		}
	}
	return false
}

func columnIsTenant(col any) bool {
	switch c := col.(type) {
	case clause.Column:
		return c.Name == Column
	case string:
		return c == Column
	}
	return false
}
