// Package cache provides an in-memory, concurrency-safe key/value cache with
// per-entry expiry and optional least-recently-used eviction.
//
// Expired entries are never returned. They are dropped lazily on access and
// by a background sweep that runs at a fixed interval independent of access
// patterns, so memory stays bounded when keys churn. The sweep goroutine is
// owned by the cache; call Close to stop it.
//
//	c := cache.New[string, Preference](
//		cache.WithTTL(5*time.Minute),
//		cache.WithSweepInterval(time.Minute),
//	)
//	defer c.Close()
//
//	c.Set("user:tenant", pref)
//	if p, ok := c.Get("user:tenant"); ok {
//		_ = p
//	}
package cache
