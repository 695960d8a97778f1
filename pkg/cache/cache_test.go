package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](cache.WithSweepInterval(0))
	t.Cleanup(func() { c.Close() })

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	clock := newClock()
	c := cache.New[string, string](
		cache.WithTTL(time.Minute),
		cache.WithSweepInterval(0),
		cache.WithClock(clock.Now),
	)
	t.Cleanup(func() { c.Close() })

	c.Set("k", "v")
	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must expire exactly at its TTL")
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](cache.WithSweepInterval(0))
	t.Cleanup(func() { c.Close() })

	c.Set("u1:t1", 1)
	c.Set("u1:global", 2)
	c.Set("u2:global", 3)

	c.Delete("u1:t1", "u1:global", "unknown")

	_, ok := c.Get("u1:t1")
	assert.False(t, ok)
	_, ok = c.Get("u1:global")
	assert.False(t, ok)
	_, ok = c.Get("u2:global")
	assert.True(t, ok)
}

func TestCache_MaxEntries(t *testing.T) {
	t.Parallel()

	c := cache.New[int, int](cache.WithMaxEntries(2), cache.WithSweepInterval(0))
	t.Cleanup(func() { c.Close() })

	c.Set(1, 1)
	c.Set(2, 2)
	_, _ = c.Get(1) // 2 becomes least recently used
	c.Set(3, 3)

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestCache_Purge(t *testing.T) {
	t.Parallel()

	clock := newClock()
	c := cache.New[string, int](
		cache.WithTTL(time.Minute),
		cache.WithSweepInterval(0),
		cache.WithClock(clock.Now),
	)
	t.Cleanup(func() { c.Close() })

	c.Set("short", 1)
	c.SetWithTTL("long", 2, time.Hour)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestCache_BackgroundSweep(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](
		cache.WithTTL(10*time.Millisecond),
		cache.WithSweepInterval(5*time.Millisecond),
	)
	t.Cleanup(func() { c.Close() })

	for i := range 10 {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCache_CloseIdempotent(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int]()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := cache.New[int, int](cache.WithMaxEntries(50))
	t.Cleanup(func() { c.Close() })

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				c.Set(i%100, g)
				c.Get(i % 100)
				if i%17 == 0 {
					c.Delete(i % 100)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
