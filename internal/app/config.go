package app

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

// Config is everything notifyd reads from the environment.
type Config struct {
	Logger      logger.Config
	Postgres    pg.Config
	Redis       redis.Config
	HTTP        httpserver.Config
	Channels    channels.Config
	Realtime    realtime.Config
	Kafka       events.KafkaConfig
	Settings    settings.Config
	Preferences preferences.Config
	Worker      WorkerConfig
}

// WorkerConfig drives the background sweeps and the inbound endpoints.
type WorkerConfig struct {
	// CredentialsKey is the base64 master key for tenant channel credentials.
	CredentialsKey string `env:"CREDENTIALS_KEY,required"`
	// CallbackSecret verifies provider delivery callbacks; empty disables
	// signature checks.
	CallbackSecret string `env:"CALLBACK_SECRET"`

	BatchInterval    time.Duration `env:"QUEUE_BATCH_INTERVAL" envDefault:"10s"`
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1m"`
	SendTimeout      time.Duration `env:"QUEUE_SEND_TIMEOUT" envDefault:"30s"`
	LeaseTTL         time.Duration `env:"QUEUE_LEASE_TTL" envDefault:"2m"`
	Concurrency      int           `env:"QUEUE_CONCURRENCY" envDefault:"4"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"3s"`

	// ImmediateDispatch sends event notifications inline instead of waiting
	// for the next batch sweep.
	ImmediateDispatch bool   `env:"EVENTS_IMMEDIATE_DISPATCH" envDefault:"true"`
	DefaultLocale     string `env:"DEFAULT_LOCALE" envDefault:"en"`
	TimeZone          string `env:"TIME_ZONE" envDefault:"UTC"`
	OwnerLinkPattern  string `env:"OWNER_LINK_PATTERN"`
	// CustomerLinkPattern is a fmt pattern; %s is the reservation id.
	CustomerLinkPattern string `env:"CUSTOMER_LINK_PATTERN"`
}

// LoadConfig reads Config from the environment and the optional .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
