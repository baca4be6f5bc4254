package ledger

import (
	"context"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChargeDiscrepancy is a charge whose settled amount is not explained by
// its applications and deposit deductions
type ChargeDiscrepancy struct {
	ChargeID  uuid.UUID
	Category  ledger.Category
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Applied   decimal.Decimal
	Deducted  decimal.Decimal
}

// PaymentDiscrepancy is an allocated payment whose remaining amount is not
// what its amount less applications and refunds leaves
type PaymentDiscrepancy struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Applied   decimal.Decimal
	Remaining decimal.Decimal
}

// ConsistencyReport lists what a consistency check found
type ConsistencyReport struct {
	TenantID        uuid.UUID
	CustomerID      uuid.UUID
	ChargesChecked  int
	PaymentsChecked int
	Charges         []ChargeDiscrepancy
	Payments        []PaymentDiscrepancy
	// MissingRevenue holds applications without their revenue posting
	MissingRevenue []uuid.UUID
	// RevenueRepaired counts revenue postings re-created by the check
	RevenueRepaired int
}

// Consistent reports whether nothing was found, repairs aside
func (r *ConsistencyReport) Consistent() bool {
	return len(r.Charges) == 0 && len(r.Payments) == 0 && len(r.MissingRevenue) == 0
}

// ConsistencyChecker is the out-of-band reconciliation for allocations
// whose postings partially failed
type ConsistencyChecker struct {
	repos  Repositories
	logger *zap.Logger
}

// NewConsistencyChecker creates a ConsistencyChecker
func NewConsistencyChecker(repos Repositories, logger *zap.Logger) *ConsistencyChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsistencyChecker{repos: repos, logger: logger}
}

// Check verifies a customer's charges and payments. With repair set,
// missing revenue postings are re-created; balance discrepancies are only
// reported.
func (c *ConsistencyChecker) Check(ctx context.Context, tenantID, customerID uuid.UUID, repair bool) (*ConsistencyReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "consistency_check")
	defer span.End()

	report := &ConsistencyReport{
		TenantID:       tenantID,
		CustomerID:     customerID,
		Charges:        []ChargeDiscrepancy{},
		Payments:       []PaymentDiscrepancy{},
		MissingRevenue: []uuid.UUID{},
	}
	if err := c.checkCharges(ctx, report); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := c.checkPayments(ctx, report, repair); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !report.Consistent() {
		c.logger.Warn("ledger inconsistency found",
			zap.String("tenant_id", tenantID.String()),
			zap.String("customer_id", customerID.String()),
			zap.Int("charges", len(report.Charges)),
			zap.Int("payments", len(report.Payments)),
			zap.Int("missing_revenue", len(report.MissingRevenue)),
			zap.Int("revenue_repaired", report.RevenueRepaired),
		)
	}
	telemetry.SetOK(span)
	return report, nil
}

func (c *ConsistencyChecker) checkCharges(ctx context.Context, report *ConsistencyReport) error {
	charges, err := c.repos.Entries.FindCharges(ctx, report.TenantID, report.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load charges: %w", err)
	}
	report.ChargesChecked = len(charges)
	if len(charges) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(charges))
	for i, charge := range charges {
		ids[i] = charge.ID
	}
	applied, err := c.repos.Applications.SumByCharges(ctx, report.TenantID, ids)
	if err != nil {
		return fmt.Errorf("failed to sum applications: %w", err)
	}
	deducted, err := c.repos.Entries.SumDeductionsByCharges(ctx, report.TenantID, ids)
	if err != nil {
		return fmt.Errorf("failed to sum deductions: %w", err)
	}

	for _, charge := range charges {
		explained := applied[charge.ID].Add(deducted[charge.ID])
		inRange := !charge.RemainingAmount.IsNegative() && charge.RemainingAmount.LessThanOrEqual(charge.Amount)
		if inRange && charge.Settled().Equal(explained) {
			continue
		}
		report.Charges = append(report.Charges, ChargeDiscrepancy{
			ChargeID:  charge.ID,
			Category:  charge.Category,
			Amount:    charge.Amount,
			Remaining: charge.RemainingAmount,
			Applied:   applied[charge.ID],
			Deducted:  deducted[charge.ID],
		})
	}
	return nil
}

func (c *ConsistencyChecker) checkPayments(ctx context.Context, report *ConsistencyReport, repair bool) error {
	payments, err := c.repos.Payments.FindByCustomer(ctx, report.TenantID, report.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	for _, payment := range payments {
		if !payment.Status.IsAllocated() {
			continue
		}
		report.PaymentsChecked++

		apps, err := c.repos.Applications.FindByPayment(ctx, report.TenantID, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to load applications: %w", err)
		}
		applied := decimal.Zero
		for _, app := range apps {
			applied = applied.Add(app.AmountApplied)
		}
		if !payment.CreditFor(applied).Equal(payment.RemainingAmount) {
			report.Payments = append(report.Payments, PaymentDiscrepancy{
				PaymentID: payment.ID,
				Amount:    payment.Amount,
				Applied:   applied,
				Remaining: payment.RemainingAmount,
			})
		}

		if err := c.checkRevenue(ctx, report, payment.ID, apps, repair); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsistencyChecker) checkRevenue(ctx context.Context, report *ConsistencyReport, paymentID uuid.UUID, apps []*ledger.PaymentApplication, repair bool) error {
	if len(apps) == 0 {
		return nil
	}
	postings, err := c.repos.PnL.FindByPayment(ctx, report.TenantID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to load revenue postings: %w", err)
	}
	posted := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		posted[p.Reference] = struct{}{}
	}

	for _, app := range apps {
		if _, ok := posted["APP-"+app.ID.String()]; ok {
			continue
		}
		if !repair {
			report.MissingRevenue = append(report.MissingRevenue, app.ID)
			continue
		}
		charge, err := c.repos.Entries.FindByID(ctx, report.TenantID, app.ChargeEntryID)
		if err == nil {
			err = c.repos.PnL.Create(ctx, ledger.NewRevenueForApplication(charge, app))
		}
		if err != nil {
			c.logger.Warn("failed to repair revenue posting",
				zap.String("application_id", app.ID.String()),
				zap.Error(err),
			)
			report.MissingRevenue = append(report.MissingRevenue, app.ID)
			continue
		}
		report.RevenueRepaired++
	}
	return nil
}
