package settings

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

const DefaultCacheTTL = 30 * time.Second

const systemKey = "\x00system"

// Cached wraps a Provider with a short-TTL cache so hot paths (rate limiter,
// preference gate, queue) do not hit the datastore on every call.
// The tenant list is not cached.
type Cached struct {
	src     Provider
	system  *cache.Cache[string, System]
	tenants *cache.Cache[string, Tenant]
}

// CachedOption configures a Cached provider.
type CachedOption func(*cachedOptions)

type cachedOptions struct {
	ttl time.Duration
	now func() time.Time
}

// WithCacheTTL sets how long settings are reused.
func WithCacheTTL(ttl time.Duration) CachedOption {
	return func(o *cachedOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithCacheClock replaces time.Now.
func WithCacheClock(now func() time.Time) CachedOption {
	return func(o *cachedOptions) {
		o.now = now
	}
}

// NewCached creates a caching provider. Call Close to release the cache sweepers.
func NewCached(src Provider, opts ...CachedOption) *Cached {
	o := cachedOptions{ttl: DefaultCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	cacheOpts := []cache.Option{cache.WithTTL(o.ttl), cache.WithSweepInterval(o.ttl), cache.WithClock(o.now)}
	return &Cached{
		src:     src,
		system:  cache.New[string, System](cacheOpts...),
		tenants: cache.New[string, Tenant](cacheOpts...),
	}
}

func (c *Cached) System(ctx context.Context) (System, error) {
	if s, ok := c.system.Get(systemKey); ok {
		return s, nil
	}
	s, err := c.src.System(ctx)
	if err != nil {
		return System{}, err
	}
	s = s.Normalize()
	c.system.Set(systemKey, s)
	return s, nil
}

func (c *Cached) Tenant(ctx context.Context, tenantID string) (Tenant, error) {
	if t, ok := c.tenants.Get(tenantID); ok {
		return t, nil
	}
	t, err := c.src.Tenant(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}
	c.tenants.Set(tenantID, t)
	return t, nil
}

func (c *Cached) Tenants(ctx context.Context) ([]Tenant, error) {
	return c.src.Tenants(ctx)
}

// Invalidate drops cached values so the next read reaches the source.
func (c *Cached) Invalidate() {
	c.system.Clear()
	c.tenants.Clear()
}

// Close stops the background cache sweepers.
func (c *Cached) Close() error {
	_ = c.system.Close()
	return c.tenants.Close()
}
