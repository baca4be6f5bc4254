package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/refund"
	"go.uber.org/zap"
)

// ErrGatewayRejected is returned when Stripe refuses a refund for a reason
// a retry will not fix
var ErrGatewayRejected = shared.NewDomainError("GATEWAY_REJECTED", "Payment provider rejected the refund")

// StripeRefundGateway issues refunds against Stripe payment intents
type StripeRefundGateway struct {
	config *StripeConfig
	client refund.Client
	logger *zap.Logger
}

// StripeRefundGatewayOption configures a StripeRefundGateway
type StripeRefundGatewayOption func(*StripeRefundGateway)

// WithBackend replaces the Stripe API backend, for tests
func WithBackend(b stripe.Backend) StripeRefundGatewayOption {
	return func(g *StripeRefundGateway) {
		g.client.B = b
	}
}

// NewStripeRefundGateway creates a gateway bound to config's secret key
func NewStripeRefundGateway(config *StripeConfig, logger *zap.Logger, opts ...StripeRefundGatewayOption) (*StripeRefundGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &StripeRefundGateway{
		config: config,
		client: refund.Client{B: stripe.GetBackend(stripe.APIBackend), Key: config.SecretKey},
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Refund creates a Stripe refund and returns its id. The idempotency key is
// forwarded so that a retried request cannot refund twice.
func (g *StripeRefundGateway) Refund(ctx context.Context, req appledger.GatewayRefundRequest) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "stripe.refund.create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrStripeID, req.PaymentIntentID,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	amount := req.Amount.Shift(2).Round(0).IntPart()
	if amount <= 0 {
		return "", fmt.Errorf("stripe: refund amount must be positive, got %s", req.Amount)
	}
	currency := req.Currency
	if currency == "" {
		currency = g.config.Currency
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(strings.ToLower(currency)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	r, err := g.client.New(params)
	if err != nil {
		telemetry.RecordError(span, err)
		g.logger.Error("Failed to create Stripe refund",
			zap.String("payment_intent", req.PaymentIntentID),
			zap.Int64("amount_minor", amount),
			zap.Error(err))
		return "", classifyStripeError(err)
	}
	telemetry.SetOK(span)

	g.logger.Info("Created Stripe refund",
		zap.String("refund_id", r.ID),
		zap.String("payment_intent", req.PaymentIntentID),
		zap.String("status", string(r.Status)))
	return r.ID, nil
}

// classifyStripeError maps Stripe failures onto domain errors. Rate limits,
// connection errors and 5xx answers are transient; card and request errors
// are rejections.
func classifyStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return shared.ErrStorageTransient.WithDetail(err.Error())
	}
	if se.HTTPStatusCode == 429 || se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI {
		return shared.ErrStorageTransient.WithDetail(se.Msg)
	}
	return ErrGatewayRejected.WithDetail(se.Msg)
}

var _ appledger.RefundGateway = (*StripeRefundGateway)(nil)
