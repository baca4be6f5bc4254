package models

import (
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryModel is the persistence model for ledger.LedgerEntry.
//
// idx_ledger_payment_gate allows one Payment row per payment and tenant;
// inserting that row is what claims a payment for allocation.
// idx_ledger_reference keeps non-empty references unique per type, which
// makes invoice materialization and refund postings idempotent.
type LedgerEntryModel struct {
	BaseModel
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_outstanding,priority:1;uniqueIndex:idx_ledger_payment_gate,priority:1,where:type = 'Payment';uniqueIndex:idx_ledger_reference,priority:1,where:reference <> ''"`
	RentalID        *uuid.UUID      `gorm:"type:uuid;index"`
	CustomerID      *uuid.UUID      `gorm:"type:uuid;index:idx_ledger_outstanding,priority:2"`
	VehicleID       *uuid.UUID      `gorm:"type:uuid"`
	Type            string          `gorm:"type:varchar(20);not null;index:idx_ledger_outstanding,priority:3;uniqueIndex:idx_ledger_reference,priority:2"`
	Category        string          `gorm:"type:varchar(64);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	EntryDate       time.Time       `gorm:"not null"`
	DueDate         *time.Time
	Reference       string     `gorm:"type:varchar(200);not null;default:'';uniqueIndex:idx_ledger_reference,priority:3"`
	PaymentID       *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_ledger_payment_gate,priority:2"`
	TargetChargeID  *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain entity
func (m *LedgerEntryModel) ToDomain() *ledger.LedgerEntry {
	return &ledger.LedgerEntry{
		TenantEntity:    shared.TenantEntity{BaseEntity: m.BaseModel.ToDomain(), TenantID: m.TenantID},
		RentalID:        m.RentalID,
		CustomerID:      m.CustomerID,
		VehicleID:       m.VehicleID,
		Type:            ledger.EntryType(m.Type),
		Category:        ledger.Category(m.Category),
		Amount:          m.Amount,
		RemainingAmount: m.RemainingAmount,
		EntryDate:       m.EntryDate,
		DueDate:         m.DueDate,
		Reference:       m.Reference,
		PaymentID:       m.PaymentID,
		TargetChargeID:  m.TargetChargeID,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain entity
func LedgerEntryModelFromDomain(e *ledger.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{
		TenantID:        e.TenantID,
		RentalID:        e.RentalID,
		CustomerID:      e.CustomerID,
		VehicleID:       e.VehicleID,
		Type:            string(e.Type),
		Category:        e.Category.String(),
		Amount:          e.Amount,
		RemainingAmount: e.RemainingAmount,
		EntryDate:       e.EntryDate,
		DueDate:         e.DueDate,
		Reference:       e.Reference,
		PaymentID:       e.PaymentID,
		TargetChargeID:  e.TargetChargeID,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// PaymentModel is the persistence model for the ledger.Payment aggregate
type PaymentModel struct {
	TenantAggregateModel
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	RentalID         *uuid.UUID      `gorm:"type:uuid;index"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentType      string          `gorm:"type:varchar(20);not null"`
	Method           string          `gorm:"type:varchar(50)"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	RemainingAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RefundAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	RefundStatus     string          `gorm:"type:varchar(20);not null;default:'None'"`
	TargetCategories CategoryList
	PaymentDate      time.Time `gorm:"not null"`
	ExternalRef      string    `gorm:"type:varchar(200);not null;default:'';index:idx_payment_external_ref"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain aggregate
func (m *PaymentModel) ToDomain() *ledger.Payment {
	p := &ledger.Payment{
		CustomerID:       m.CustomerID,
		RentalID:         m.RentalID,
		Amount:           m.Amount,
		PaymentType:      ledger.PaymentType(m.PaymentType),
		Method:           m.Method,
		Status:           ledger.PaymentStatus(m.Status),
		RemainingAmount:  m.RemainingAmount,
		RefundAmount:     m.RefundAmount,
		RefundStatus:     ledger.RefundStatus(m.RefundStatus),
		TargetCategories: m.TargetCategories.Categories(),
		PaymentDate:      m.PaymentDate,
		ExternalRef:      m.ExternalRef,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// PaymentModelFromDomain creates a persistence model from a domain aggregate
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	m := &PaymentModel{
		CustomerID:       p.CustomerID,
		RentalID:         p.RentalID,
		Amount:           p.Amount,
		PaymentType:      string(p.PaymentType),
		Method:           p.Method,
		Status:           string(p.Status),
		RemainingAmount:  p.RemainingAmount,
		RefundAmount:     p.RefundAmount,
		RefundStatus:     string(p.RefundStatus),
		TargetCategories: NewCategoryList(p.TargetCategories),
		PaymentDate:      p.PaymentDate,
		ExternalRef:      p.ExternalRef,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}

// PaymentApplicationModel is the persistence model for ledger.PaymentApplication
type PaymentApplicationModel struct {
	TenantModel
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChargeEntryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	AmountApplied decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PaymentApplicationModel) TableName() string {
	return "payment_applications"
}

// ToDomain converts the persistence model to a domain entity
func (m *PaymentApplicationModel) ToDomain() *ledger.PaymentApplication {
	return &ledger.PaymentApplication{
		TenantEntity:  m.ToTenantEntity(),
		PaymentID:     m.PaymentID,
		ChargeEntryID: m.ChargeEntryID,
		AmountApplied: m.AmountApplied,
	}
}

// PaymentApplicationModelFromDomain creates a persistence model from a domain entity
func PaymentApplicationModelFromDomain(a *ledger.PaymentApplication) *PaymentApplicationModel {
	m := &PaymentApplicationModel{
		PaymentID:     a.PaymentID,
		ChargeEntryID: a.ChargeEntryID,
		AmountApplied: a.AmountApplied,
	}
	m.FromDomainTenantEntity(a.TenantEntity)
	return m
}

// InvoiceModel is the persistence model for ledger.Invoice
type InvoiceModel struct {
	TenantModel
	RentalID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_invoice_rental"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null"`
	InvoiceNumber    string          `gorm:"type:varchar(50);not null"`
	RentalFee        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Tax              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ServiceFee       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SecurityDeposit  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DeliveryFee      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CollectionFee    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Extras           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	InsurancePremium decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	IssuedAt         time.Time       `gorm:"not null;index:idx_invoice_rental"`
	DueDate          *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain entity
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	return &ledger.Invoice{
		TenantEntity:     m.ToTenantEntity(),
		RentalID:         m.RentalID,
		CustomerID:       m.CustomerID,
		InvoiceNumber:    m.InvoiceNumber,
		RentalFee:        m.RentalFee,
		Tax:              m.Tax,
		ServiceFee:       m.ServiceFee,
		SecurityDeposit:  m.SecurityDeposit,
		DeliveryFee:      m.DeliveryFee,
		CollectionFee:    m.CollectionFee,
		Extras:           m.Extras,
		InsurancePremium: m.InsurancePremium,
		IssuedAt:         m.IssuedAt,
		DueDate:          m.DueDate,
	}
}

// InvoiceModelFromDomain creates a persistence model from a domain entity
func InvoiceModelFromDomain(i *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		RentalID:         i.RentalID,
		CustomerID:       i.CustomerID,
		InvoiceNumber:    i.InvoiceNumber,
		RentalFee:        i.RentalFee,
		Tax:              i.Tax,
		ServiceFee:       i.ServiceFee,
		SecurityDeposit:  i.SecurityDeposit,
		DeliveryFee:      i.DeliveryFee,
		CollectionFee:    i.CollectionFee,
		Extras:           i.Extras,
		InsurancePremium: i.InsurancePremium,
		IssuedAt:         i.IssuedAt,
		DueDate:          i.DueDate,
	}
	m.FromDomainTenantEntity(i.TenantEntity)
	return m
}

// PnLEntryModel is the persistence model for ledger.PnLEntry
type PnLEntryModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_pnl_reference,priority:1"`
	RentalID      *uuid.UUID      `gorm:"type:uuid;index"`
	VehicleID     *uuid.UUID      `gorm:"type:uuid;index"`
	CustomerID    *uuid.UUID      `gorm:"type:uuid"`
	PaymentID     *uuid.UUID      `gorm:"type:uuid;index"`
	ChargeEntryID *uuid.UUID      `gorm:"type:uuid"`
	Side          string          `gorm:"type:varchar(20);not null"`
	Category      string          `gorm:"type:varchar(64);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	EntryDate     time.Time       `gorm:"not null;index"`
	Reference     string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_pnl_reference,priority:2"`
}

// TableName returns the table name for GORM
func (PnLEntryModel) TableName() string {
	return "pnl_entries"
}

// ToDomain converts the persistence model to a domain entity
func (m *PnLEntryModel) ToDomain() *ledger.PnLEntry {
	return &ledger.PnLEntry{
		TenantEntity:  shared.TenantEntity{BaseEntity: m.BaseModel.ToDomain(), TenantID: m.TenantID},
		RentalID:      m.RentalID,
		VehicleID:     m.VehicleID,
		CustomerID:    m.CustomerID,
		PaymentID:     m.PaymentID,
		ChargeEntryID: m.ChargeEntryID,
		Side:          ledger.PnLSide(m.Side),
		Category:      ledger.Category(m.Category),
		Amount:        m.Amount,
		EntryDate:     m.EntryDate,
		Reference:     m.Reference,
	}
}

// PnLEntryModelFromDomain creates a persistence model from a domain entity
func PnLEntryModelFromDomain(e *ledger.PnLEntry) *PnLEntryModel {
	m := &PnLEntryModel{
		TenantID:      e.TenantID,
		RentalID:      e.RentalID,
		VehicleID:     e.VehicleID,
		CustomerID:    e.CustomerID,
		PaymentID:     e.PaymentID,
		ChargeEntryID: e.ChargeEntryID,
		Side:          string(e.Side),
		Category:      e.Category.String(),
		Amount:        e.Amount,
		EntryDate:     e.EntryDate,
		Reference:     e.Reference,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// AllModels lists every table owned by the ledger, in creation order
func AllModels() []any {
	return []any{
		&LedgerEntryModel{},
		&PaymentModel{},
		&PaymentApplicationModel{},
		&InvoiceModel{},
		&PnLEntryModel{},
	}
}
