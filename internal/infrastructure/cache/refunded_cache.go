package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultRefundedPrefix = "ledger:refunded:"

func refundedKey(prefix string, tenantID, paymentID uuid.UUID) string {
	return prefix + tenantID.String() + ":" + paymentID.String()
}

// RedisRefundedCache keeps each payment's refunded-so-far figures per
// category as a JSON object of decimal strings
type RedisRefundedCache struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *zap.Logger
}

// RedisRefundedCacheOption configures a RedisRefundedCache
type RedisRefundedCacheOption func(*RedisRefundedCache)

// WithRefundedKeyPrefix overrides the key prefix
func WithRefundedKeyPrefix(prefix string) RedisRefundedCacheOption {
	return func(c *RedisRefundedCache) {
		c.keyPrefix = prefix
	}
}

// WithRefundedCacheLogger sets the logger
func WithRefundedCacheLogger(logger *zap.Logger) RedisRefundedCacheOption {
	return func(c *RedisRefundedCache) {
		c.logger = logger
	}
}

// NewRedisRefundedCache creates a cache on an existing client. The caller
// owns the client.
func NewRedisRefundedCache(client redis.UniversalClient, opts ...RedisRefundedCacheOption) *RedisRefundedCache {
	c := &RedisRefundedCache{
		client:    client,
		keyPrefix: defaultRefundedPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached totals. ok is false on a miss.
func (c *RedisRefundedCache) Get(ctx context.Context, tenantID, paymentID uuid.UUID) (map[ledger.Category]decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, refundedKey(c.keyPrefix, tenantID, paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read refunded totals: %w", err)
	}

	var stored map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &stored); err != nil {
		// A corrupt value is treated as a miss and rebuilt by the caller
		c.logger.Warn("Discarding unreadable refunded totals",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err),
		)
		return nil, false, nil
	}
	totals := make(map[ledger.Category]decimal.Decimal, len(stored))
	for cat, amount := range stored {
		totals[ledger.Category(cat)] = amount
	}
	return totals, true, nil
}

// Set stores totals with ttl
func (c *RedisRefundedCache) Set(ctx context.Context, tenantID, paymentID uuid.UUID, totals map[ledger.Category]decimal.Decimal, ttl time.Duration) error {
	stored := make(map[string]decimal.Decimal, len(totals))
	for cat, amount := range totals {
		stored[cat.String()] = amount
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode refunded totals: %w", err)
	}
	if err := c.client.Set(ctx, refundedKey(c.keyPrefix, tenantID, paymentID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write refunded totals: %w", err)
	}
	return nil
}

// Invalidate drops the cached totals of a payment
func (c *RedisRefundedCache) Invalidate(ctx context.Context, tenantID, paymentID uuid.UUID) error {
	if err := c.client.Del(ctx, refundedKey(c.keyPrefix, tenantID, paymentID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate refunded totals: %w", err)
	}
	return nil
}

// cacheEntry wraps a cached value with its expiry
type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryRefundedCache is the single-instance RefundedCache used when Redis
// is not configured
type InMemoryRefundedCache struct {
	entries sync.Map // refundedKey -> *cacheEntry[map[ledger.Category]decimal.Decimal]
	hits    int64
	misses  int64
}

// NewInMemoryRefundedCache creates an empty cache
func NewInMemoryRefundedCache() *InMemoryRefundedCache {
	return &InMemoryRefundedCache{}
}

// Get returns a copy of the cached totals
func (c *InMemoryRefundedCache) Get(_ context.Context, tenantID, paymentID uuid.UUID) (map[ledger.Category]decimal.Decimal, bool, error) {
	key := refundedKey("", tenantID, paymentID)
	v, ok := c.entries.Load(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	e := v.(*cacheEntry[map[ledger.Category]decimal.Decimal])
	if e.isExpired() {
		c.entries.Delete(key)
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	atomic.AddInt64(&c.hits, 1)
	return copyTotals(e.value), true, nil
}

// Set stores a copy of totals
func (c *InMemoryRefundedCache) Set(_ context.Context, tenantID, paymentID uuid.UUID, totals map[ledger.Category]decimal.Decimal, ttl time.Duration) error {
	c.entries.Store(refundedKey("", tenantID, paymentID), &cacheEntry[map[ledger.Category]decimal.Decimal]{
		value:     copyTotals(totals),
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Invalidate drops the cached totals of a payment
func (c *InMemoryRefundedCache) Invalidate(_ context.Context, tenantID, paymentID uuid.UUID) error {
	c.entries.Delete(refundedKey("", tenantID, paymentID))
	return nil
}

// GetStats returns hit and miss counts
func (c *InMemoryRefundedCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

func copyTotals(in map[ledger.Category]decimal.Decimal) map[ledger.Category]decimal.Decimal {
	out := make(map[ledger.Category]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var (
	_ appledger.RefundedCache = (*RedisRefundedCache)(nil)
	_ appledger.RefundedCache = (*InMemoryRefundedCache)(nil)
)
