package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/cache"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultSweepInterval = time.Minute

	globalScope = "global"
)

// Rejection reasons returned in notifications.Decision.
const (
	ReasonSystemDisabled   = "notifications disabled system-wide"
	ReasonTenantChannels   = "all requested channels disabled by tenant"
	ReasonKindDisabled     = "notification kind disabled by user"
	ReasonChannelsDisabled = "all requested channels disabled by user"
)

type cacheKey struct {
	userID string
	scope  string
}

// lookup is a cached store read; found=false records a miss so absent
// records are not re-queried until the entry expires.
type lookup struct {
	pref  Preference
	found bool
}

// Manager resolves effective preferences and gates notifications.
// It implements notifications.Gate.
type Manager struct {
	store    Store
	configs  notifications.ChannelConfigStore
	settings settings.Provider
	cache    *cache.Cache[cacheKey, lookup]
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	configs       notifications.ChannelConfigStore
	settings      settings.Provider
	cacheTTL      time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// WithChannelConfigs enables the tenant channel veto.
func WithChannelConfigs(s notifications.ChannelConfigStore) Option {
	return func(o *managerOptions) { o.configs = s }
}

// WithSettings enables the system-wide kill switch.
func WithSettings(p settings.Provider) Option {
	return func(o *managerOptions) { o.settings = p }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *managerOptions) {
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(o *managerOptions) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *managerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewManager creates a Manager. Close must be called to stop the cache sweep.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	o := managerOptions{
		cacheTTL:      DefaultCacheTTL,
		sweepInterval: DefaultSweepInterval,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Manager{
		store:    store,
		configs:  o.configs,
		settings: o.settings,
		cache: cache.New[cacheKey, lookup](
			cache.WithTTL(o.cacheTTL),
			cache.WithSweepInterval(o.sweepInterval),
			cache.WithClock(o.now),
		),
		logger: o.logger,
		now:    o.now,
	}, nil
}

// ShouldSend decides which of the requested channels may be used.
// Rejections are reported through the Decision, not as errors.
func (m *Manager) ShouldSend(ctx context.Context, userID, tenantID string, kind notifications.Kind, channels []notifications.Channel) (notifications.Decision, error) {
	if m.settings != nil {
		sys, err := m.settings.System(ctx)
		if err != nil {
			return notifications.Decision{}, fmt.Errorf("load system settings: %w", err)
		}
		if !sys.NotificationsEnabled {
			return reject(ReasonSystemDisabled), nil
		}
	}

	candidates := slices.Clone(channels)

	if tenantID != "" {
		var err error
		if candidates, err = m.applyTenantConfig(ctx, tenantID, candidates); err != nil {
			return notifications.Decision{}, err
		}
		if candidates, err = m.applyTenantDefault(ctx, tenantID, candidates); err != nil {
			return notifications.Decision{}, err
		}
		if len(candidates) == 0 {
			return reject(ReasonTenantChannels), nil
		}
	}

	pref, err := m.GetUserPreferences(ctx, userID, tenantID)
	if err != nil {
		return notifications.Decision{}, err
	}
	if !pref.KindEnabled(kind) {
		return reject(ReasonKindDisabled), nil
	}
	candidates = slices.DeleteFunc(candidates, func(ch notifications.Channel) bool {
		return !pref.ChannelEnabled(ch)
	})
	if len(candidates) == 0 {
		return reject(ReasonChannelsDisabled), nil
	}

	return notifications.Decision{Allowed: true, Channels: candidates}, nil
}

// applyTenantConfig removes channels the tenant explicitly disabled.
// Onsite is always kept; channels without a config stay.
func (m *Manager) applyTenantConfig(ctx context.Context, tenantID string, candidates []notifications.Channel) ([]notifications.Channel, error) {
	if m.configs == nil {
		return candidates, nil
	}
	out := candidates[:0]
	for _, ch := range candidates {
		if ch == notifications.ChannelOnsite {
			out = append(out, ch)
			continue
		}
		cfg, err := m.configs.ChannelConfig(ctx, tenantID, ch)
		switch {
		case errors.Is(err, notifications.ErrChannelConfigNotFound):
			out = append(out, ch)
		case err != nil:
			return nil, fmt.Errorf("load %s config: %w", ch, err)
		case cfg.Enabled:
			out = append(out, ch)
		default:
			m.logger.LogAttrs(ctx, slog.LevelDebug, "channel disabled by tenant config",
				logger.TenantID(tenantID), logger.Channel(ch))
		}
	}
	return out, nil
}

// applyTenantDefault lets the tenant default record turn email off.
func (m *Manager) applyTenantDefault(ctx context.Context, tenantID string, candidates []notifications.Channel) ([]notifications.Channel, error) {
	l, err := m.cached(ctx, "", tenantID)
	if err != nil {
		return nil, err
	}
	if !l.found || l.pref.ChannelEnabled(notifications.ChannelEmail) {
		return candidates, nil
	}
	return slices.DeleteFunc(candidates, func(ch notifications.Channel) bool {
		return ch == notifications.ChannelEmail
	}), nil
}

// GetUserPreferences returns the effective preference for the user in the
// tenant: the tenant-specific record, else the user's global record, else
// the all-enabled default.
func (m *Manager) GetUserPreferences(ctx context.Context, userID, tenantID string) (Preference, error) {
	if tenantID != "" {
		l, err := m.cached(ctx, userID, tenantID)
		if err != nil {
			return Preference{}, err
		}
		if l.found {
			return l.pref.Clone(), nil
		}
	}
	l, err := m.cached(ctx, userID, "")
	if err != nil {
		return Preference{}, err
	}
	if l.found {
		return l.pref.Clone(), nil
	}
	return Default(userID, tenantID), nil
}

func (m *Manager) cached(ctx context.Context, userID, tenantID string) (lookup, error) {
	k := keyFor(userID, tenantID)
	if l, ok := m.cache.Get(k); ok {
		return l, nil
	}

	p, err := m.store.GetPreference(ctx, userID, tenantID)
	switch {
	case errors.Is(err, ErrPreferenceNotFound):
		l := lookup{}
		m.cache.Set(k, l)
		return l, nil
	case err != nil:
		return lookup{}, fmt.Errorf("load preference: %w", err)
	}

	l := lookup{pref: p, found: true}
	m.cache.Set(k, l)
	return l, nil
}

// SavePreference validates and stores p, then invalidates the cache.
func (m *Manager) SavePreference(ctx context.Context, p Preference) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.DigestFrequency == "" {
		p.DigestFrequency = DigestImmediate
	}
	p.UpdatedAt = m.now()

	if err := m.store.SavePreference(ctx, p); err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	m.invalidate(p.UserID, p.TenantID)
	return nil
}

// DeletePreference removes a record, falling back to the next lookup level.
func (m *Manager) DeletePreference(ctx context.Context, userID, tenantID string) error {
	err := m.store.DeletePreference(ctx, userID, tenantID)
	// Invalidate even on failure; the store may have changed underneath.
	m.invalidate(userID, tenantID)
	if err != nil && !errors.Is(err, ErrPreferenceNotFound) {
		return fmt.Errorf("delete preference: %w", err)
	}
	return err
}

// invalidate drops the written key and the user's global key.
func (m *Manager) invalidate(userID, tenantID string) {
	m.cache.Delete(keyFor(userID, tenantID), keyFor(userID, ""))
}

// CacheLen reports the number of cached lookups.
func (m *Manager) CacheLen() int {
	return m.cache.Len()
}

// Close stops the background cache sweep.
func (m *Manager) Close() error {
	return m.cache.Close()
}

func keyFor(userID, tenantID string) cacheKey {
	if tenantID == "" {
		tenantID = globalScope
	}
	return cacheKey{userID: userID, scope: tenantID}
}

func reject(reason string) notifications.Decision {
	return notifications.Decision{Allowed: false, Reason: reason}
}
