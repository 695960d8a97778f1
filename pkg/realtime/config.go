package realtime

import "time"

type Config struct {
	// TokenSecret verifies HS256 subscriber tokens.
	TokenSecret  string        `env:"REALTIME_TOKEN_SECRET"`
	TokenIssuer  string        `env:"REALTIME_TOKEN_ISSUER" envDefault:"notifykit"`
	BufferSize   int           `env:"REALTIME_BUFFER_SIZE" envDefault:"32"`
	PingInterval time.Duration `env:"REALTIME_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout time.Duration `env:"REALTIME_WRITE_TIMEOUT" envDefault:"10s"`
	// RedisChannel is the pub/sub channel used to fan out between instances.
	RedisChannel string `env:"REALTIME_REDIS_CHANNEL" envDefault:"notifykit:realtime"`
	// AllowedOrigins restricts websocket upgrades by Origin; empty allows any.
	AllowedOrigins []string `env:"REALTIME_ALLOWED_ORIGINS" envSeparator:","`
}
