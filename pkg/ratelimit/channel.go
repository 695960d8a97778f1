package ratelimit

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

// Limit is a (requests, window) pair.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits are the provider limits applied per channel and tenant.
var DefaultLimits = map[notifications.Channel]Limit{
	notifications.ChannelEmail:    {Requests: 100, Window: time.Minute},
	notifications.ChannelLine:     {Requests: 1000, Window: time.Second},
	notifications.ChannelTelegram: {Requests: 30, Window: time.Second},
	notifications.ChannelWhatsApp: {Requests: 80, Window: time.Second},
	notifications.ChannelSMS:      {Requests: 60, Window: time.Minute},
	notifications.ChannelPush:     {Requests: 600, Window: time.Minute},
	notifications.ChannelOnsite:   {Requests: 1000, Window: time.Second},
}

// fallbackLimit applies to channels without a configured limit.
var fallbackLimit = Limit{Requests: 60, Window: time.Minute}

// WithGlobalCap converts a per-minute cap into l's window unit and returns
// the stricter of the two. A non-positive cap leaves l unchanged. When the
// cap allows less than one request per window, the result is one request
// per time.Minute/perMinute.
func (l Limit) WithGlobalCap(perMinute int) Limit {
	if perMinute <= 0 {
		return l
	}
	converted := int(math.Floor(float64(perMinute) * l.Window.Seconds() / 60))
	if converted < 1 {
		return Limit{Requests: 1, Window: time.Minute / time.Duration(perMinute)}
	}
	if converted < l.Requests {
		l.Requests = converted
	}
	return l
}

// ChannelLimiter admits sends per (channel, tenant) using each channel's
// limit, tightened by the system-wide per-minute cap when one is set.
type ChannelLimiter struct {
	store    WindowStore
	settings settings.Provider
	limits   map[notifications.Channel]Limit
	logger   *slog.Logger
	now      func() time.Time
}

// ChannelLimiterOption configures a ChannelLimiter.
type ChannelLimiterOption func(*ChannelLimiter)

// WithLimit overrides the limit for one channel.
func WithLimit(ch notifications.Channel, l Limit) ChannelLimiterOption {
	return func(c *ChannelLimiter) {
		if l.Requests > 0 && l.Window > 0 {
			c.limits[ch] = l
		}
	}
}

// WithSettingsProvider supplies the global cap. Use a cached provider.
func WithSettingsProvider(p settings.Provider) ChannelLimiterOption {
	return func(c *ChannelLimiter) { c.settings = p }
}

func WithLogger(l *slog.Logger) ChannelLimiterOption {
	return func(c *ChannelLimiter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ChannelLimiterOption {
	return func(c *ChannelLimiter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChannelLimiter creates a per-channel limiter over store.
func NewChannelLimiter(store WindowStore, opts ...ChannelLimiterOption) (*ChannelLimiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	c := &ChannelLimiter{
		store:  store,
		limits: maps.Clone(DefaultLimits),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EffectiveLimit returns the limit in force for ch right now.
func (c *ChannelLimiter) EffectiveLimit(ctx context.Context, ch notifications.Channel) Limit {
	l, ok := c.limits[ch]
	if !ok {
		l = fallbackLimit
	}
	if c.settings == nil {
		return l
	}
	sys, err := c.settings.System(ctx)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "rate limit settings unavailable, using channel default",
			logger.Channel(ch), logger.Error(err))
		return l
	}
	return l.WithGlobalCap(sys.GlobalRateLimitPerMinute)
}

// Check admits one send for (ch, tenantID) and records it when allowed.
func (c *ChannelLimiter) Check(ctx context.Context, ch notifications.Channel, tenantID string) (*Result, error) {
	l := c.EffectiveLimit(ctx, ch)
	return check(ctx, c.store, Key(string(ch), tenantID), c.now(), l.Requests, l.Window)
}

// Allow implements notifications.RateLimiter.
func (c *ChannelLimiter) Allow(ctx context.Context, ch notifications.Channel, tenantID string) (bool, time.Duration, error) {
	res, err := c.Check(ctx, ch, tenantID)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}

// Reset clears the bucket for (ch, tenantID).
func (c *ChannelLimiter) Reset(ctx context.Context, ch notifications.Channel, tenantID string) error {
	return c.store.Reset(ctx, Key(string(ch), tenantID))
}
