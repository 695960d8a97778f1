package preferences

import "time"

// Config holds preference cache settings.
type Config struct {
	CacheTTL      time.Duration `env:"PREFERENCES_CACHE_TTL" envDefault:"5m"`
	SweepInterval time.Duration `env:"PREFERENCES_CACHE_SWEEP_INTERVAL" envDefault:"1m"`
}

// Options converts the config into manager options.
func (c Config) Options() []Option {
	return []Option{WithCacheTTL(c.CacheTTL), WithSweepInterval(c.SweepInterval)}
}
