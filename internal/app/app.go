package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/callbacks"
	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/reminders"
	"github.com/dmitrymomot/notifykit/pkg/secrets"
	"github.com/dmitrymomot/notifykit/pkg/settings"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

// App owns the connections and components of a notifyd process.
type App struct {
	cfg Config
	log *slog.Logger

	pool *pgxpool.Pool
	rdb  *goredis.Client

	settings    *settings.Cached
	preferences *preferences.Manager
	hub         *realtime.Hub
	bridge      *realtime.RedisBridge
	queue       *notifications.Queue
	reminders   *reminders.Processor
	consumer    *events.KafkaConsumer
	handler     http.Handler
	server      *httpserver.Server
}

// New connects to Postgres and Redis, applies migrations when enabled and
// builds every component. Call Close when done, also after Run returns.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	key, err := secrets.ParseKey(cfg.Worker.CredentialsKey)
	if err != nil {
		return fmt.Errorf("credentials key: %w", err)
	}
	cipher, err := secrets.NewCipher(key)
	if err != nil {
		return fmt.Errorf("credentials cipher: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Worker.TimeZone)
	if err != nil {
		return fmt.Errorf("time zone %q: %w", cfg.Worker.TimeZone, err)
	}

	a.log.InfoContext(ctx, "connecting to postgres")
	if a.pool, err = pg.Connect(ctx, cfg.Postgres); err != nil {
		return err
	}
	if cfg.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx, a.pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, a.log); err != nil {
			return err
		}
	}

	a.log.InfoContext(ctx, "connecting to redis")
	if a.rdb, err = redis.Connect(ctx, cfg.Redis); err != nil {
		return err
	}

	store := pgstore.New(a.pool,
		pgstore.WithCipher(cipher),
		pgstore.WithLogger(a.log),
	)
	a.settings = settings.NewCached(store.Settings(cfg.Settings.System()),
		settings.WithCacheTTL(cfg.Settings.CacheTTL),
	)

	limiter, err := ratelimit.NewChannelLimiter(
		ratelimit.NewRedisStore(a.rdb, cfg.Redis.KeyPrefix+"ratelimit:"),
		ratelimit.WithSettingsProvider(a.settings),
		ratelimit.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	prefOpts := append(cfg.Preferences.Options(),
		preferences.WithChannelConfigs(store),
		preferences.WithSettings(a.settings),
		preferences.WithLogger(a.log),
	)
	if a.preferences, err = preferences.NewManager(store, prefOpts...); err != nil {
		return fmt.Errorf("preferences: %w", err)
	}

	engine := templates.NewEngine(store,
		templates.WithLocaleResolver(templates.ContactLocales{Contacts: store}),
		templates.WithDefaultLocale(cfg.Worker.DefaultLocale),
		templates.WithLogger(a.log),
	)

	// In-app notifications go through Redis so every instance's hub sees
	// them, whichever instance sent them.
	a.hub = realtime.NewHub(
		realtime.WithBufferSize(cfg.Realtime.BufferSize),
		realtime.WithHubLogger(a.log),
	)
	a.bridge = realtime.NewRedisBridge(a.rdb, cfg.Realtime.RedisChannel, a.hub, a.log)

	adapters, err := channels.New(cfg.Channels, a.bridge,
		channels.WithContacts(store),
		channels.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("channel adapters: %w", err)
	}
	registry, err := notifications.NewRegistry(adapters...)
	if err != nil {
		return fmt.Errorf("adapter registry: %w", err)
	}
	if missing := registry.Missing(); len(missing) > 0 {
		a.log.WarnContext(ctx, "channels without adapter", slog.Any("channels", missing))
	}

	tracker := notifications.NewTracker(store,
		notifications.WithTrackerLogger(a.log),
		notifications.WithTrackerRegistry(registry),
	)
	a.queue = notifications.NewQueue(store, registry, tracker,
		notifications.WithQueueLogger(a.log),
		notifications.WithRateLimiter(limiter),
		notifications.WithSettings(a.settings),
		notifications.WithSendTimeout(cfg.Worker.SendTimeout),
		notifications.WithLeaseTTL(cfg.Worker.LeaseTTL),
		notifications.WithConcurrency(cfg.Worker.Concurrency),
	)
	service := notifications.NewService(store, a.queue, tracker,
		notifications.WithServiceLogger(a.log),
		notifications.WithGate(a.preferences),
		notifications.WithRenderer(engine),
	)

	router, err := events.NewRouter(service, a.settings,
		events.WithLogger(a.log),
		events.WithLinks(cfg.Worker.OwnerLinkPattern, cfg.Worker.CustomerLinkPattern),
		events.WithLocation(loc),
		events.WithImmediateDispatch(cfg.Worker.ImmediateDispatch),
	)
	if err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	if a.reminders, err = reminders.NewProcessor(store, router, a.settings,
		reminders.WithContacts(store),
		reminders.WithLogger(a.log),
	); err != nil {
		return fmt.Errorf("reminder processor: %w", err)
	}

	if cfg.Kafka.Enabled() {
		reader, err := events.NewKafkaReader(cfg.Kafka)
		if err != nil {
			return err
		}
		a.consumer = events.NewKafkaConsumer(reader, events.NewRecorder(store, router, a.log), a.log)
	} else {
		a.log.InfoContext(ctx, "kafka not configured, event ingestion disabled")
	}

	if a.handler, err = a.routes(tracker); err != nil {
		return err
	}
	a.server = httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(a.log),
		httpserver.WithShutdownHook(func() { _ = a.hub.Close() }),
	)
	return nil
}

func (a *App) routes(tracker *notifications.Tracker) (http.Handler, error) {
	cb, err := callbacks.NewHandler(tracker,
		callbacks.WithSecret(a.cfg.Worker.CallbackSecret),
		callbacks.WithLogger(a.log),
	)
	if err != nil {
		return nil, fmt.Errorf("callback handler: %w", err)
	}

	r := httpserver.NewRouter(a.cfg.HTTP, a.log)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.log, a.cfg.Worker.ReadinessTimeout, map[string]httpserver.Check{
		"postgres": pg.Healthcheck(a.pool),
		"redis":    redis.Healthcheck(a.rdb),
	}))
	r.Mount("/callbacks", cb.Routes())

	auth, err := realtime.NewAuthenticator(a.cfg.Realtime.TokenSecret, a.cfg.Realtime.TokenIssuer)
	switch {
	case errors.Is(err, realtime.ErrSecretRequired):
		a.log.Warn("realtime token secret not set, websocket endpoint disabled")
	case err != nil:
		return nil, fmt.Errorf("realtime auth: %w", err)
	default:
		r.Route("/notifications", func(r chi.Router) {
			r.Handle("/ws", realtime.NewHandler(a.hub, auth, a.cfg.Realtime, a.log))
		})
	}
	return r, nil
}

// Run serves HTTP and runs the queue sweep, the reminder sweep, the Redis
// bridge and the Kafka consumer until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx, a.handler) })
	g.Go(func() error { return a.bridge.Run(ctx) })
	g.Go(func() error {
		every(ctx, a.cfg.Worker.BatchInterval, a.processQueue)
		return nil
	})
	g.Go(func() error {
		every(ctx, a.cfg.Worker.ReminderInterval, a.processReminders)
		return nil
	})
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(ctx) })
	}

	a.log.InfoContext(ctx, "notifyd started", slog.String("addr", a.cfg.HTTP.Addr))
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.log.InfoContext(context.WithoutCancel(ctx), "notifyd stopped")
	return err
}

// processQueue runs one system-wide sweep sized by the system batch size.
// Tenant batch sizes bound tenant-scoped sweeps only.
func (a *App) processQueue(ctx context.Context) {
	start := time.Now()
	res, err := a.queue.ProcessBatch(ctx, notifications.BatchOptions{})
	if err != nil {
		a.log.LogAttrs(ctx, slog.LevelError, "queue sweep failed", logger.Error(err))
		return
	}
	if res.Processed == 0 {
		return
	}
	a.log.LogAttrs(ctx, slog.LevelInfo, "queue sweep",
		slog.Int("processed", res.Processed),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Int("deferred", res.Deferred),
		logger.Duration(time.Since(start)),
	)
}

func (a *App) processReminders(ctx context.Context) {
	sum, err := a.reminders.ProcessDueReminders(ctx)
	if err != nil {
		a.log.LogAttrs(ctx, slog.LevelError, "reminder sweep failed", logger.Error(err))
		return
	}
	if sum.Overlapped || sum.Due == 0 {
		return
	}
	a.log.LogAttrs(ctx, slog.LevelInfo, "reminder sweep",
		slog.Int("tenants", sum.Tenants),
		slog.Int("due", sum.Due),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
		slog.Int("duplicates", sum.Duplicates),
	)
}

// Close releases connections and background goroutines. Safe on a
// partially initialised App.
func (a *App) Close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.log.Error("close kafka consumer", logger.Error(err))
		}
	}
	if a.hub != nil {
		_ = a.hub.Close()
	}
	if a.preferences != nil {
		_ = a.preferences.Close()
	}
	if a.settings != nil {
		_ = a.settings.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("close redis", logger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// every calls fn immediately and then on each tick until ctx is done.
// Calls never overlap.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	fn(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
