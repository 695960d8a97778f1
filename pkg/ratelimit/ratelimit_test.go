package ratelimit_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ratelimit:email:tenant-1", ratelimit.Key("email", "tenant-1"))
	assert.Equal(t, "ratelimit:sms:global", ratelimit.Key("sms", ""))

	long := ratelimit.Key("push", strings.Repeat("x", 200))
	assert.True(t, strings.HasPrefix(long, "ratelimit:"))
	assert.Len(t, long, len("ratelimit:")+32)
	assert.Equal(t, long, ratelimit.Key("push", strings.Repeat("x", 200)))
}

func TestNewSlidingWindow_Validation(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	_, err := ratelimit.NewSlidingWindow(nil, 1, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)
	_, err = ratelimit.NewSlidingWindow(store, 0, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	_, err = ratelimit.NewSlidingWindow(store, 1, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidInterval)

	sw, err := ratelimit.NewSlidingWindow(store, 1, time.Second)
	require.NoError(t, err)
	_, err = sw.Allow(context.Background(), "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}

func TestChannelLimiter_MaxRequestsPlusOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newClock()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	limiter, err := ratelimit.NewChannelLimiter(store,
		ratelimit.WithClock(clk.Now),
		ratelimit.WithLimit(notifications.ChannelSMS, ratelimit.Limit{Requests: 5, Window: time.Minute}),
	)
	require.NoError(t, err)

	for i := range 5 {
		res, err := limiter.Check(ctx, notifications.ChannelSMS, "tenant-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, res.Remaining)
		clk.Advance(time.Second)
	}

	res, err := limiter.Check(ctx, notifications.ChannelSMS, "tenant-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
	// Oldest request was at t0; now is t0+5s.
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	// Other tenants and the global bucket are independent.
	res, err = limiter.Check(ctx, notifications.ChannelSMS, "tenant-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	allowed, _, err := limiter.Allow(ctx, notifications.ChannelSMS, "")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Once the oldest timestamp leaves the window one slot opens.
	clk.Advance(55 * time.Second)
	res, err = limiter.Check(ctx, notifications.ChannelSMS, "tenant-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, limiter.Reset(ctx, notifications.ChannelSMS, "tenant-1"))
	for range 5 {
		res, err = limiter.Check(ctx, notifications.ChannelSMS, "tenant-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestMemoryStore_RejectedNotRecorded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	for range 3 {
		_, err := store.Admit(ctx, "k", now, time.Minute, 2)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Stored("k"))
}

func TestMemoryStore_LazyPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithPruneInterval(10 * time.Second))
	t.Cleanup(func() { store.Close() })

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := time.Second

	for i := range 3 {
		adm, err := store.Admit(ctx, "k", t0.Add(time.Duration(i)*100*time.Millisecond), window, 10)
		require.NoError(t, err)
		assert.True(t, adm.Allowed)
	}

	// Timestamps are outside the window but the bucket was pruned less than
	// 10s ago, so they are still stored; they no longer count.
	adm, err := store.Admit(ctx, "k", t0.Add(5*time.Second), window, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, adm.Count)
	assert.Equal(t, 4, store.Stored("k"))

	adm, err = store.Admit(ctx, "k", t0.Add(11*time.Second), window, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, adm.Count)
	assert.Equal(t, 1, store.Stored("k"))
}

func TestMemoryStore_OutOfOrderTimestamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := 10 * time.Second

	for _, d := range []time.Duration{2 * time.Second, time.Second, 3 * time.Second} {
		adm, err := store.Admit(ctx, "k", t0.Add(d), window, 10)
		require.NoError(t, err)
		assert.True(t, adm.Allowed)
	}

	// The t0+1s entry is older than the cutoff at t0+1.5s and must not count,
	// although it was admitted after t0+2s.
	adm, err := store.Admit(ctx, "k", t0.Add(11500*time.Millisecond), window, 10)
	require.NoError(t, err)
	assert.True(t, adm.Allowed)
	assert.Equal(t, 3, adm.Count)
	assert.Equal(t, t0.Add(2*time.Second), adm.Oldest)
}

func TestMemoryStore_CleanupIdleBuckets(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(5 * time.Millisecond))
	t.Cleanup(func() { store.Close() })

	_, err := store.Admit(context.Background(), "idle", time.Now().Add(-time.Hour), time.Millisecond, 1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLimit_WithGlobalCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit ratelimit.Limit
		cap   int
		want  ratelimit.Limit
	}{
		{name: "no cap", limit: ratelimit.Limit{Requests: 100, Window: time.Minute}, cap: 0, want: ratelimit.Limit{Requests: 100, Window: time.Minute}},
		{name: "cap looser than channel", limit: ratelimit.Limit{Requests: 100, Window: time.Minute}, cap: 500, want: ratelimit.Limit{Requests: 100, Window: time.Minute}},
		{name: "cap stricter per minute", limit: ratelimit.Limit{Requests: 100, Window: time.Minute}, cap: 40, want: ratelimit.Limit{Requests: 40, Window: time.Minute}},
		{name: "cap converted to seconds", limit: ratelimit.Limit{Requests: 1000, Window: time.Second}, cap: 600, want: ratelimit.Limit{Requests: 10, Window: time.Second}},
		{name: "cap below one per window stretches window", limit: ratelimit.Limit{Requests: 30, Window: time.Second}, cap: 30, want: ratelimit.Limit{Requests: 1, Window: 2 * time.Second}},
		{name: "cap of one per minute", limit: ratelimit.Limit{Requests: 80, Window: time.Second}, cap: 1, want: ratelimit.Limit{Requests: 1, Window: time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.limit.WithGlobalCap(tt.cap)
			assert.Equal(t, tt.want, got)
			if tt.cap > 0 {
				perMinute := float64(got.Requests) * float64(time.Minute) / float64(got.Window)
				assert.LessOrEqual(t, perMinute, float64(tt.cap))
			}
		})
	}
}

func TestChannelLimiter_GlobalCapFromSettings(t *testing.T) {
	t.Parallel()

	provider := settings.NewStatic(settings.System{NotificationsEnabled: true, GlobalRateLimitPerMinute: 120})
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	limiter, err := ratelimit.NewChannelLimiter(store, ratelimit.WithSettingsProvider(provider))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, ratelimit.Limit{Requests: 2, Window: time.Second}, limiter.EffectiveLimit(ctx, notifications.ChannelLine))
	assert.Equal(t, ratelimit.Limit{Requests: 100, Window: time.Minute}, limiter.EffectiveLimit(ctx, notifications.ChannelEmail))
	assert.Equal(t, ratelimit.Limit{Requests: 60, Window: time.Minute}, limiter.EffectiveLimit(ctx, notifications.ChannelSMS))

	provider.SetSystem(settings.System{NotificationsEnabled: true})
	assert.Equal(t, ratelimit.DefaultLimits[notifications.ChannelLine], limiter.EffectiveLimit(ctx, notifications.ChannelLine))
}

func TestChannelLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	limiter, err := ratelimit.NewChannelLimiter(store,
		ratelimit.WithLimit(notifications.ChannelPush, ratelimit.Limit{Requests: 50, Window: time.Hour}))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				ok, _, err := limiter.Allow(context.Background(), notifications.ChannelPush, "t")
				if err == nil && ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	store := ratelimit.NewRedisStore(client, "test:")
	key := ratelimit.Key("sms", "redis-test")
	require.NoError(t, store.Reset(ctx, key))
	t.Cleanup(func() { store.Reset(ctx, key) })

	now := time.Now()
	for i := range 3 {
		adm, err := store.Admit(ctx, key, now.Add(time.Duration(i)*time.Millisecond), time.Minute, 3)
		require.NoError(t, err)
		assert.True(t, adm.Allowed)
		assert.Equal(t, i+1, adm.Count)
	}

	adm, err := store.Admit(ctx, key, now.Add(10*time.Millisecond), time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, adm.Allowed)
	assert.Equal(t, 3, adm.Count)
	assert.Equal(t, now.UnixMilli(), adm.Oldest.UnixMilli())
}
