package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Race outcomes reported by the payment processor
const (
	RaceOutcomeResolved  = "resolved"
	RaceOutcomeReclaimed = "reclaimed"
	RaceOutcomeTimeout   = "timeout"
)

// Metrics receives ledger activity. telemetry.LedgerMetrics implements it
// over OpenTelemetry instruments.
type Metrics interface {
	RecordAllocation(ctx context.Context, tenantID uuid.UUID, status string, allocated decimal.Decimal, duration time.Duration)
	RecordRace(ctx context.Context, tenantID uuid.UUID, outcome string)
	RecordPostingFailures(ctx context.Context, tenantID uuid.UUID, count int)
	RecordRefund(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, shares int)
	RecordCreditSweep(ctx context.Context, tenantID uuid.UUID, allocated decimal.Decimal, payments int)
}

type nopMetrics struct{}

func (nopMetrics) RecordAllocation(context.Context, uuid.UUID, string, decimal.Decimal, time.Duration) {
}
func (nopMetrics) RecordRace(context.Context, uuid.UUID, string) {}
func (nopMetrics) RecordPostingFailures(context.Context, uuid.UUID, int) {}
func (nopMetrics) RecordRefund(context.Context, uuid.UUID, decimal.Decimal, int) {}
func (nopMetrics) RecordCreditSweep(context.Context, uuid.UUID, decimal.Decimal, int) {}

// NopMetrics discards every measurement
func NopMetrics() Metrics { return nopMetrics{} }
