package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/scheduler"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerLister lists the customers of a tenant with ledger activity
type CustomerLister interface {
	ActiveCustomerIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}

// ConsistencyVerifier checks one customer ledger
type ConsistencyVerifier interface {
	Check(ctx context.Context, tenantID, customerID uuid.UUID, repair bool) (*ConsistencyReport, error)
}

// CreditSweeper applies held credit of one customer
type CreditSweeper interface {
	SweepCredit(ctx context.Context, tenantID, customerID uuid.UUID) (*CreditSweepResult, error)
}

// ReconcilerConfig configures a Reconciler
type ReconcilerConfig struct {
	Customers CustomerLister
	Checker   ConsistencyVerifier
	Credit    CreditSweeper
	// Repair lets the consistency check re-create missing revenue postings
	Repair bool
	Logger *zap.Logger
}

// Reconciler runs scheduled ledger maintenance for a whole tenant, one
// customer at a time. A failing customer does not stop the others; the job
// fails afterwards so the scheduler retries it.
type Reconciler struct {
	customers CustomerLister
	checker   ConsistencyVerifier
	credit    CreditSweeper
	repair    bool
	logger    *zap.Logger
}

// NewReconciler creates a Reconciler
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Reconciler{
		customers: cfg.Customers,
		checker:   cfg.Checker,
		credit:    cfg.Credit,
		repair:    cfg.Repair,
		logger:    cfg.Logger,
	}
}

var _ scheduler.JobExecutor = (*Reconciler)(nil)

// Execute runs one scheduler job
func (r *Reconciler) Execute(ctx context.Context, job *scheduler.Job) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reconcile_"+string(job.Kind))
	defer span.End()

	var step func(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error)
	switch job.Kind {
	case scheduler.JobKindReconcile:
		if r.checker == nil {
			return fmt.Errorf("no consistency checker configured")
		}
		step = r.check
	case scheduler.JobKindCreditSweep:
		if r.credit == nil {
			return fmt.Errorf("no credit allocator configured")
		}
		step = r.sweep
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}

	customerIDs, err := r.customers.ActiveCustomerIDs(ctx, job.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	var (
		errs    []error
		flagged int
	)
	for _, customerID := range customerIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		hit, err := step(ctx, job.TenantID, customerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("customer %s: %w", customerID, err))
			continue
		}
		if hit {
			flagged++
		}
	}

	r.logger.Info("Tenant reconciliation finished",
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("customers", len(customerIDs)),
		zap.Int("flagged", flagged),
		zap.Int("errors", len(errs)),
	)
	if err := errors.Join(errs...); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

func (r *Reconciler) check(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	report, err := r.checker.Check(ctx, tenantID, customerID, r.repair)
	if err != nil {
		return false, err
	}
	if report.Consistent() && report.RevenueRepaired == 0 {
		return false, nil
	}
	r.logger.Warn("Ledger inconsistency found",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int("charge_discrepancies", len(report.Charges)),
		zap.Int("payment_discrepancies", len(report.Payments)),
		zap.Int("missing_revenue", len(report.MissingRevenue)),
		zap.Int("revenue_repaired", report.RevenueRepaired),
	)
	return true, nil
}

func (r *Reconciler) sweep(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	result, err := r.credit.SweepCredit(ctx, tenantID, customerID)
	if err != nil {
		return false, err
	}
	return result.Allocated.IsPositive(), nil
}
