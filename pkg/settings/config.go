package settings

import "time"

// Config seeds the system settings from the environment.
type Config struct {
	NotificationsEnabled     bool          `env:"NOTIFICATIONS_ENABLED" envDefault:"true"`
	GlobalRateLimitPerMinute int           `env:"NOTIFICATIONS_GLOBAL_RATE_LIMIT" envDefault:"0"`
	MaxAttempts              int           `env:"NOTIFICATIONS_MAX_ATTEMPTS" envDefault:"3"`
	BatchSize                int           `env:"NOTIFICATIONS_BATCH_SIZE" envDefault:"100"`
	CacheTTL                 time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"30s"`
}

// System converts the config to System settings.
func (c Config) System() System {
	return System{
		NotificationsEnabled:     c.NotificationsEnabled,
		GlobalRateLimitPerMinute: c.GlobalRateLimitPerMinute,
		MaxAttempts:              c.MaxAttempts,
		BatchSize:                c.BatchSize,
	}.Normalize()
}
