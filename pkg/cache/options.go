package cache

import "time"

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	ttl        time.Duration
	sweepEvery time.Duration
	maxEntries int
	now        func() time.Time
}

// WithTTL sets the expiry applied by Set. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired entries are purged.
// Zero or negative disables the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepEvery = d
	}
}

// WithMaxEntries bounds the cache size; the least recently used entry is
// evicted when the limit is exceeded. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxEntries = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
