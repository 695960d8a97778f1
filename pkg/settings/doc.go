// Package settings exposes system-wide and per-tenant notification settings
// through a Provider, with a short-TTL caching decorator for hot paths.
package settings
