package cache

import (
	"context"
	"sync"
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
)

// sweepEvery is the number of writes between expiry sweeps
const sweepEvery = 256

// InMemoryIdempotencyStore implements shared.IdempotencyStore with a map.
// Keys are not shared between processes, so it only suits single-instance
// deployments and tests.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	writes int
	now    func() time.Time
}

// MemoryStoreOption configures an InMemoryIdempotencyStore
type MemoryStoreOption func(*InMemoryIdempotencyStore)

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *InMemoryIdempotencyStore) { s.now = now }
}

// NewInMemoryIdempotencyStore creates an empty store. Expired keys are
// swept while writing, so no background goroutine is needed.
func NewInMemoryIdempotencyStore(opts ...MemoryStoreOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{expiry: make(map[string]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkProcessed records key. An expired key counts as new.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.expiry[key]; ok && now.Before(until) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)

	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweep(now)
	}
	return true, nil
}

// IsProcessed checks whether key has been recorded and has not expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.expiry[key]
	return ok && s.now().Before(until), nil
}

// Forget removes key
func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiry, key)
	return nil
}

// Close implements shared.IdempotencyStore; the map needs no cleanup
func (s *InMemoryIdempotencyStore) Close() error {
	return nil
}

func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	for key, until := range s.expiry {
		if !now.Before(until) {
			delete(s.expiry, key)
		}
	}
}

// Len returns the number of stored keys, expired ones included
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
