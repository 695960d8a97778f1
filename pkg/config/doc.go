// Package config loads process configuration from environment variables.
//
// Every package in notifykit that needs settings exposes a Config struct
// tagged for github.com/caarlos0/env/v11. Load parses such a struct once
// per type and caches it; Parse reads a prefixed, uncached copy for
// components that run several instances of the same config.
package config
