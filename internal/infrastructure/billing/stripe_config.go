package billing

import (
	"fmt"
	"strings"

	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/config"
)

// StripeConfig holds configuration for the Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret verifies webhook signatures (whsec_xxx)
	WebhookSecret string

	// IsTestMode requires a test key when set and a live key otherwise
	IsTestMode bool

	// Currency is the ISO code refunds are issued in
	Currency string
}

// NewStripeConfig builds a StripeConfig from application config
func NewStripeConfig(cfg config.StripeConfig, currency string) *StripeConfig {
	return &StripeConfig{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		IsTestMode:    cfg.IsTestMode,
		Currency:      currency,
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if c.IsTestMode && !strings.HasPrefix(c.SecretKey, "sk_test") && !strings.HasPrefix(c.SecretKey, "rk_test") {
		return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
	}
	if !c.IsTestMode && !strings.HasPrefix(c.SecretKey, "sk_live") && !strings.HasPrefix(c.SecretKey, "rk_live") {
		return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
	}
	if c.Currency == "" {
		return fmt.Errorf("stripe: currency is required")
	}
	return nil
}
