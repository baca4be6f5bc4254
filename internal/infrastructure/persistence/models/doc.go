// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer
// free of ORM concerns.
//
// Structure:
//   - base.go: base persistence models (BaseModel, TenantModel, TenantAggregateModel)
//   - ledger.go: ledger entries, payments, applications, invoices and P&L postings
//   - category_list.go: JSON column type for payment target categories
//
// Column definitions and index names here mirror migrations/ so that
// AutoMigrate in tests produces the same constraints as production.
package models
