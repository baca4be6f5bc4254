package ledger

import (
	"context"
	"fmt"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"go.uber.org/zap"
)

// CreditSweepHandler sweeps a customer's held credit whenever a charge is
// booked for them
type CreditSweepHandler struct {
	allocator *CreditAllocator
	logger    *zap.Logger
}

// NewCreditSweepHandler creates a CreditSweepHandler
func NewCreditSweepHandler(allocator *CreditAllocator, logger *zap.Logger) *CreditSweepHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditSweepHandler{allocator: allocator, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *CreditSweepHandler) EventTypes() []string {
	return []string{ledger.EventTypeChargeCreated}
}

// Handle processes a ChargeCreatedEvent
func (h *CreditSweepHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*ledger.ChargeCreatedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", ledger.EventTypeChargeCreated),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeChargeCreated, event.EventType())
	}

	result, err := h.allocator.SweepCredit(ctx, event.TenantID(), created.CustomerID)
	if err != nil {
		h.logger.Error("credit sweep failed",
			zap.String("tenant_id", event.TenantID().String()),
			zap.String("charge_id", created.ChargeID.String()),
			zap.Error(err),
		)
		return err
	}
	h.logger.Debug("credit sweep after charge",
		zap.String("charge_id", created.ChargeID.String()),
		zap.String("allocated", result.Allocated.StringFixed(2)),
	)
	return nil
}

var _ shared.EventHandler = (*CreditSweepHandler)(nil)
