// Package ratelimit implements sliding-window admission control for
// outbound provider calls.
//
// A WindowStore keeps request timestamps per key. MemoryStore holds them in
// process and prunes a bucket lazily, at most once per prune interval, so a
// hot key does not pay for a prune on every call. RedisStore keeps them in
// sorted sets and runs the check-and-record step as one Lua script, which
// makes the limit shared across processes.
//
// ChannelLimiter applies the per-channel defaults in DefaultLimits to keys of
// the form "ratelimit:<channel>:<tenant|global>", tightened by the system-wide
// per-minute cap from settings:
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimit.NewChannelLimiter(store,
//		ratelimit.WithSettingsProvider(cachedSettings),
//	)
//
//	res, err := limiter.Check(ctx, notifications.ChannelSMS, tenantID)
//	if err == nil && !res.Allowed {
//		// try again after res.RetryAfter
//	}
package ratelimit
