package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been handled, such as
// webhook event ids delivered more than once by a payment provider.
type IdempotencyStore interface {
	// MarkProcessed records the key with a TTL. It returns true if the key
	// was newly recorded and false if it had been seen before.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether the key has been recorded
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes a key so that a failed delivery can be retried
	Forget(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// DefaultIdempotencyTTL is how long processed keys are retained
const DefaultIdempotencyTTL = 24 * time.Hour
