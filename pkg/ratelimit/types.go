package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request was admitted and recorded.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests still admissible in the window.
	Remaining int

	// RetryAfter is how long until the oldest request leaves the window.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Admission is what a WindowStore reports for one check.
type Admission struct {
	Allowed bool
	// Count is the number of requests in the window after the check.
	Count int
	// Oldest is the earliest timestamp still in the window; zero when empty.
	Oldest time.Time
}

// WindowStore holds sliding-window buckets.
type WindowStore interface {
	// Admit atomically counts the requests in (now-window, now] for key and,
	// when fewer than limit, records now. A rejected check records nothing.
	Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Admission, error)

	// Reset removes the bucket for key.
	Reset(ctx context.Context, key string) error
}
