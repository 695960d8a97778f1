package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow limits requests per key to limit within any window-long
// interval. It tracks individual request timestamps, so it is exact at the
// cost of memory proportional to limit.
type SlidingWindow struct {
	store  WindowStore
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindow creates a sliding window limiter.
func NewSlidingWindow(store WindowStore, limit int, window time.Duration) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidInterval
	}
	return &SlidingWindow{store: store, limit: limit, window: window, now: time.Now}, nil
}

// Allow records a request for key if the window has capacity.
func (sw *SlidingWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	return check(ctx, sw.store, key, sw.now(), sw.limit, sw.window)
}

// Reset clears the bucket for key.
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return sw.store.Reset(ctx, key)
}

func check(ctx context.Context, store WindowStore, key string, now time.Time, limit int, window time.Duration) (*Result, error) {
	adm, err := store.Admit(ctx, key, now, window, limit)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Allowed:   adm.Allowed,
		Limit:     limit,
		Remaining: max(0, limit-adm.Count),
	}
	if !adm.Allowed {
		res.RetryAfter = retryAfter(adm.Oldest, now, window)
	}
	return res, nil
}

// retryAfter is the time until the oldest timestamp leaves the window,
// never less than a millisecond so callers always back off.
func retryAfter(oldest, now time.Time, window time.Duration) time.Duration {
	if oldest.IsZero() {
		return window
	}
	return max(oldest.Add(window).Sub(now), time.Millisecond)
}
