package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/logger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// Stripe metadata keys set when a checkout session or payment intent is
// created for a ledger payment
const (
	MetadataPaymentID        = "payment_id"
	MetadataTenantID         = "tenant_id"
	MetadataTargetCategories = "target_categories"
)

// Webhook outcomes reported in results and metrics
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// ErrInvalidSignature is returned when a webhook payload fails verification
var ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")

// PaymentApplier is the part of the ledger a webhook drives
type PaymentApplier interface {
	ApplyPayment(ctx context.Context, tenantID, paymentID uuid.UUID, targets []ledger.Category) (*appledger.ProcessResult, error)
	FindPaymentByExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*ledger.Payment, error)
}

// WebhookMetrics records webhook handling outcomes
type WebhookMetrics interface {
	RecordWebhook(ctx context.Context, eventType, outcome string)
}

type nopWebhookMetrics struct{}

func (nopWebhookMetrics) RecordWebhook(context.Context, string, string) {}

// StripeWebhookService verifies Stripe webhooks and applies the payments
// they confirm
type StripeWebhookService struct {
	webhookSecret string
	ledger        PaymentApplier
	store         shared.IdempotencyStore
	ttl           time.Duration
	metrics       WebhookMetrics
	logger        *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	WebhookSecret    string
	Ledger           PaymentApplier
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	Metrics          WebhookMetrics
	Logger           *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopWebhookMetrics{}
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyTTL
	}
	return &StripeWebhookService{
		webhookSecret: cfg.WebhookSecret,
		ledger:        cfg.Ledger,
		store:         cfg.IdempotencyStore,
		ttl:           cfg.IdempotencyTTL,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string                   `json:"event_id"`
	EventType string                   `json:"event_type"`
	Outcome   string                   `json:"outcome"`
	Message   string                   `json:"message,omitempty"`
	Result    *appledger.ProcessResult `json:"-"`
}

// paymentRef identifies the ledger payment a Stripe object pays for
type paymentRef struct {
	tenantID  uuid.UUID
	paymentID uuid.UUID
	intentID  string
	targets   []ledger.Category
}

// ProcessWebhook verifies and handles one delivery. A returned error asks
// Stripe to redeliver; everything that a retry cannot fix is acknowledged
// with an ignored outcome instead.
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "stripe_webhook")
	defer span.End()

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn("Failed to verify webhook signature", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, ErrInvalidSignature.WithDetail(err.Error())
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrEventType, string(event.Type), telemetry.SpanAttrStripeID, event.ID)

	result := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	var ref *paymentRef
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		ref, err = s.checkoutSessionRef(event)
	case stripe.EventTypePaymentIntentSucceeded:
		ref, err = s.paymentIntentRef(event)
	default:
		log.Debug("Unhandled webhook event type")
		return s.finish(ctx, result, OutcomeIgnored, "event type not handled"), nil
	}
	if err != nil {
		log.Warn("Webhook carries no usable payment reference", zap.Error(err))
		return s.finish(ctx, result, OutcomeIgnored, err.Error()), nil
	}
	if ref == nil {
		return s.finish(ctx, result, OutcomeIgnored, "payment not completed"), nil
	}

	key := "stripe:" + event.ID
	if s.store != nil {
		isNew, err := s.store.MarkProcessed(ctx, key, s.ttl)
		if err != nil {
			log.Warn("Idempotency check failed, processing anyway", zap.Error(err))
		} else if !isNew {
			log.Info("Duplicate webhook delivery skipped")
			return s.finish(ctx, result, OutcomeDuplicate, ""), nil
		}
	}

	processed, err := s.apply(logger.ContextWithTenantID(ctx, ref.tenantID.String()), log, ref)
	if err != nil {
		if s.store != nil {
			if forgetErr := s.store.Forget(ctx, key); forgetErr != nil {
				log.Warn("Failed to release idempotency key", zap.Error(forgetErr))
			}
		}
		if errors.Is(err, ledger.ErrPaymentNotFound) {
			// A payment from another system or a deleted one; a retry will not find it either
			log.Warn("Webhook references an unknown payment",
				zap.String("tenant_id", ref.tenantID.String()),
				zap.String("payment_intent", ref.intentID))
			return s.finish(ctx, result, OutcomeIgnored, err.Error()), nil
		}
		telemetry.RecordError(span, err)
		log.Error("Failed to apply webhook payment", zap.Error(err))
		s.finish(ctx, result, OutcomeFailed, err.Error())
		return result, err
	}

	result.Result = processed
	if processed.HasFailures() {
		log.Warn("Webhook payment applied with posting failures",
			zap.Int("failures", len(processed.Failures)))
	}
	telemetry.SetOK(span)
	return s.finish(ctx, result, OutcomeApplied, ""), nil
}

func (s *StripeWebhookService) finish(ctx context.Context, result *WebhookResult, outcome, message string) *WebhookResult {
	result.Outcome = outcome
	result.Message = message
	s.metrics.RecordWebhook(ctx, result.EventType, outcome)
	return result
}

func (s *StripeWebhookService) apply(ctx context.Context, log *zap.Logger, ref *paymentRef) (*appledger.ProcessResult, error) {
	paymentID := ref.paymentID
	if paymentID == uuid.Nil {
		payment, err := s.ledger.FindPaymentByExternalRef(ctx, ref.tenantID, ref.intentID)
		if err != nil {
			return nil, err
		}
		paymentID = payment.ID
	}
	log.Info("Applying payment from webhook",
		zap.String("tenant_id", ref.tenantID.String()),
		zap.String("payment_id", paymentID.String()))
	return s.ledger.ApplyPayment(ctx, ref.tenantID, paymentID, ref.targets)
}

func (s *StripeWebhookService) checkoutSessionRef(event stripe.Event) (*paymentRef, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}
	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}
	return parseMetadata(session.Metadata, intentID)
}

func (s *StripeWebhookService) paymentIntentRef(event stripe.Event) (*paymentRef, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	return parseMetadata(intent.Metadata, intent.ID)
}

// parseMetadata reads the ledger identifiers. tenant_id is required; without
// payment_id the payment is looked up by its intent id.
func parseMetadata(md map[string]string, intentID string) (*paymentRef, error) {
	tenantID, err := uuid.Parse(md[MetadataTenantID])
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", MetadataTenantID, err)
	}
	ref := &paymentRef{tenantID: tenantID, intentID: intentID}

	if raw := md[MetadataPaymentID]; raw != "" {
		if ref.paymentID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", MetadataPaymentID, err)
		}
	} else if intentID == "" {
		return nil, fmt.Errorf("metadata %s missing and no payment intent", MetadataPaymentID)
	}

	if raw := strings.TrimSpace(md[MetadataTargetCategories]); raw != "" {
		if ref.targets, err = ledger.ParseCategories(strings.Split(raw, ",")); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", MetadataTargetCategories, err)
		}
	}
	return ref, nil
}
