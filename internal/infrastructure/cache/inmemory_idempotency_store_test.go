package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*InMemoryIdempotencyStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewInMemoryIdempotencyStore(WithClock(clock.Now)), clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore()

	isNew, err := store.MarkProcessed(ctx, "stripe:evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "stripe:evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew, "redelivery inside the ttl is a duplicate")

	processed, err := store.IsProcessed(ctx, "stripe:evt_1")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(time.Hour)

	processed, err = store.IsProcessed(ctx, "stripe:evt_1")
	require.NoError(t, err)
	assert.False(t, processed)

	isNew, err = store.MarkProcessed(ctx, "stripe:evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "expired key counts as new")
}

func TestInMemoryIdempotencyStore_Forget(t *testing.T) {
	ctx := context.Background()
	store, _ := newClockedStore()

	_, err := store.MarkProcessed(ctx, "stripe:evt_failed", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "stripe:evt_failed"))

	isNew, err := store.MarkProcessed(ctx, "stripe:evt_failed", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "forgotten key should be accepted on redelivery")

	assert.NoError(t, store.Forget(ctx, "never-seen"))
	assert.NoError(t, store.Close())
}

func TestInMemoryIdempotencyStore_SweepsWhileWriting(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore()

	_, err := store.MarkProcessed(ctx, "long", 48*time.Hour)
	require.NoError(t, err)
	for i := 1; i < sweepEvery-1; i++ {
		_, err := store.MarkProcessed(ctx, fmt.Sprintf("short-%d", i), time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, sweepEvery-1, store.Len())

	clock.Advance(time.Hour)
	_, err = store.MarkProcessed(ctx, "trigger", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len(), "only unexpired keys survive the sweep")
}

func TestInMemoryIdempotencyStore_ConcurrentDeliveries(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdempotencyStore()

	var (
		wg    sync.WaitGroup
		fresh atomic.Int32
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if isNew, err := store.MarkProcessed(ctx, "stripe:evt_concurrent", time.Hour); err == nil && isNew {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one delivery should win")
}
