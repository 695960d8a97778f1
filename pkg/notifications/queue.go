package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

const (
	DefaultSendTimeout = 30 * time.Second
	DefaultLeaseTTL    = 2 * time.Minute
	DefaultConcurrency = 8
)

// BatchOptions controls a batch sweep.
type BatchOptions struct {
	// TenantID scopes the sweep to one tenant and applies its batch size.
	TenantID string
	// Limit overrides the tenant and system batch size when positive.
	Limit int
}

// BatchResult summarizes processed queue items.
type BatchResult struct {
	Processed int
	Sent      int
	Failed    int
	Deferred  int
}

type itemOutcome int

const (
	outcomeSent itemOutcome = iota
	outcomeFailed
	outcomeDeferred
)

// errRateLimited marks a send that was postponed by the rate limiter.
type errRateLimited struct{ retryAfter time.Duration }

func (e *errRateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.retryAfter)
}

// Queue fans notifications out to channels and drives adapters.
type Queue struct {
	store       Storage
	registry    *Registry
	tracker     *Tracker
	limiter     RateLimiter
	settings    settings.Provider
	logger      *slog.Logger
	sendTimeout time.Duration
	leaseTTL    time.Duration
	concurrency int
	now         func() time.Time
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithRateLimiter sets the limiter consulted before every send.
func WithRateLimiter(l RateLimiter) QueueOption {
	return func(q *Queue) { q.limiter = l }
}

// WithSettings sets the provider for batch size and attempt ceiling.
func WithSettings(p settings.Provider) QueueOption {
	return func(q *Queue) { q.settings = p }
}

// WithSendTimeout bounds each adapter call.
func WithSendTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.sendTimeout = d
		}
	}
}

// WithLeaseTTL sets how long a claimed item is hidden from other sweeps.
func WithLeaseTTL(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.leaseTTL = d
		}
	}
}

// WithConcurrency bounds parallel item processing within one call.
func WithConcurrency(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue creates a queue manager.
func NewQueue(store Storage, registry *Registry, tracker *Tracker, opts ...QueueOption) *Queue {
	q := &Queue{
		store:       store,
		registry:    registry,
		tracker:     tracker,
		logger:      slog.Default(),
		sendTimeout: DefaultSendTimeout,
		leaseTTL:    DefaultLeaseTTL,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue records one queue item per channel: an outbound row for
// provider-batched channels, a pending delivery row for the rest.
// Channels without an adapter still get a pending row so the failure is
// recorded when it is dispatched.
func (q *Queue) Enqueue(ctx context.Context, n Notification, channels []Channel) error {
	sys := q.system(ctx)
	var errs []error
	for _, ch := range channels {
		adapter, err := q.registry.Lookup(ch)
		if err == nil && usesOutbound(adapter) {
			now := q.now()
			m := OutboundMessage{
				ID:             uuid.NewString(),
				NotificationID: n.ID,
				TenantID:       n.TenantID,
				RecipientID:    n.RecipientID,
				Channel:        ch,
				Priority:       n.Priority,
				Status:         OutboundPending,
				MaxAttempts:    sys.MaxAttempts,
				ScheduledAt:    now,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := q.store.EnqueueOutbound(ctx, m); err != nil {
				errs = append(errs, fmt.Errorf("enqueue %s: %w", ch, err))
			}
			continue
		}
		if _, err := q.tracker.Open(ctx, n, ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessNotification dispatches the queued items of one notification now.
func (q *Queue) ProcessNotification(ctx context.Context, notificationID string) (BatchResult, error) {
	return q.process(ctx, ClaimOptions{NotificationID: notificationID})
}

// ProcessBatch dispatches a bounded page of queued items across
// notifications. The resolved page size is one budget shared by both queue
// tables: deliveries are claimed first and outbound messages fill the rest.
// With an empty TenantID the system batch size applies.
func (q *Queue) ProcessBatch(ctx context.Context, opts BatchOptions) (BatchResult, error) {
	limit := settings.BatchSize(ctx, q.settings, opts.TenantID, opts.Limit)
	return q.process(ctx, ClaimOptions{TenantID: opts.TenantID, Limit: limit})
}

func (q *Queue) process(ctx context.Context, claim ClaimOptions) (BatchResult, error) {
	sys := q.system(ctx)
	now := q.now()
	claim.Now = now
	claim.LeaseUntil = now.Add(q.leaseTTL)
	claim.MaxAttempts = sys.MaxAttempts
	claim.ExcludeChannels = q.outboundChannels()

	deliveries, err := q.store.ClaimDeliveries(ctx, claim)
	if err != nil {
		return BatchResult{}, fmt.Errorf("claim deliveries: %w", err)
	}
	var messages []OutboundMessage
	if claim.Limit <= 0 || len(deliveries) < claim.Limit {
		outbound := claim
		if claim.Limit > 0 {
			outbound.Limit = claim.Limit - len(deliveries)
		}
		if messages, err = q.store.ClaimOutbound(ctx, outbound); err != nil {
			return BatchResult{}, fmt.Errorf("claim outbound: %w", err)
		}
	}

	var (
		sent, failed, deferred atomic.Int64
		g, gctx                = errgroup.WithContext(ctx)
	)
	g.SetLimit(q.concurrency)

	record := func(o itemOutcome) {
		switch o {
		case outcomeSent:
			sent.Add(1)
		case outcomeFailed:
			failed.Add(1)
		case outcomeDeferred:
			deferred.Add(1)
		}
	}

	for _, d := range deliveries {
		g.Go(func() error {
			record(q.processDelivery(gctx, d))
			return nil
		})
	}
	for _, m := range messages {
		g.Go(func() error {
			record(q.processOutbound(gctx, m))
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{
		Processed: len(deliveries) + len(messages),
		Sent:      int(sent.Load()),
		Failed:    int(failed.Load()),
		Deferred:  int(deferred.Load()),
	}
	if res.Processed > 0 {
		q.logger.LogAttrs(ctx, slog.LevelInfo, "queue items processed",
			logger.NotificationID(claim.NotificationID),
			logger.TenantID(claim.TenantID),
			slog.Int("processed", res.Processed),
			slog.Int("sent", res.Sent),
			slog.Int("failed", res.Failed),
			slog.Int("deferred", res.Deferred),
		)
	}
	return res, nil
}

func (q *Queue) processDelivery(ctx context.Context, d DeliveryStatus) itemOutcome {
	d, err := q.tracker.Retry(ctx, d)
	if err != nil {
		q.logItemError(ctx, d, "restart failed delivery", err)
		return outcomeFailed
	}

	res, err := q.dispatch(ctx, d.Channel, d.TenantID, d.NotificationID)
	return q.settle(ctx, d, res, err)
}

func (q *Queue) processOutbound(ctx context.Context, m OutboundMessage) itemOutcome {
	n, err := q.store.GetNotification(ctx, m.NotificationID)
	if err != nil {
		q.finishOutbound(ctx, m, err)
		return outcomeFailed
	}

	d, err := q.tracker.OpenOrGet(ctx, n, m.Channel)
	if err == nil {
		d, err = q.tracker.Retry(ctx, d)
	}
	if err != nil {
		q.finishOutbound(ctx, m, err)
		return outcomeFailed
	}

	res, sendErr := q.dispatch(ctx, m.Channel, m.TenantID, m.NotificationID)
	outcome := q.settle(ctx, d, res, sendErr)

	switch outcome {
	case outcomeDeferred:
		var rl *errRateLimited
		errors.As(sendErr, &rl)
		until := q.now().Add(rl.retryAfter)
		m.Status = OutboundPending
		m.LockedUntil = &until
		m.UpdatedAt = q.now()
		if err := q.store.UpdateOutbound(ctx, m); err != nil {
			q.logger.LogAttrs(ctx, slog.LevelError, "failed to defer outbound message",
				slog.String("outbound_id", m.ID), logger.Error(err))
		}
	case outcomeSent:
		q.finishOutbound(ctx, m, nil)
	default:
		if sendErr == nil {
			sendErr = fmt.Errorf("%w: %s", ErrSendFailed, res.Error)
		}
		q.finishOutbound(ctx, m, sendErr)
	}
	return outcome
}

func (q *Queue) finishOutbound(ctx context.Context, m OutboundMessage, cause error) {
	m.Attempts++
	m.LockedUntil = nil
	m.UpdatedAt = q.now()
	if cause == nil {
		m.Status = OutboundSent
		m.LastError = ""
	} else {
		m.Status = OutboundFailed
		m.LastError = cause.Error()
	}
	if err := q.store.UpdateOutbound(ctx, m); err != nil {
		q.logger.LogAttrs(ctx, slog.LevelError, "failed to update outbound message",
			slog.String("outbound_id", m.ID),
			logger.NotificationID(m.NotificationID),
			logger.Error(err),
		)
	}
}

// settle writes the dispatch outcome back through the tracker.
func (q *Queue) settle(ctx context.Context, d DeliveryStatus, res SendResult, sendErr error) itemOutcome {
	var rl *errRateLimited
	if errors.As(sendErr, &rl) {
		if err := q.tracker.Defer(ctx, d, q.now().Add(rl.retryAfter)); err != nil {
			q.logItemError(ctx, d, "defer rate limited delivery", err)
		}
		q.logger.LogAttrs(ctx, slog.LevelDebug, "delivery deferred by rate limiter",
			logger.DeliveryID(d.ID),
			logger.Channel(d.Channel),
			logger.TenantID(d.TenantID),
			logger.RetryAfter(rl.retryAfter),
		)
		return outcomeDeferred
	}

	if sendErr == nil && !res.Success {
		sendErr = fmt.Errorf("%w: %s", ErrSendFailed, res.Error)
	}

	if sendErr != nil {
		if _, err := q.tracker.RecordFailure(ctx, d, sendErr); err != nil {
			q.logItemError(ctx, d, "record failed delivery", err)
		}
		q.logger.LogAttrs(ctx, slog.LevelWarn, "delivery failed",
			logger.DeliveryID(d.ID),
			logger.NotificationID(d.NotificationID),
			logger.Channel(d.Channel),
			logger.Attempt(d.Attempts+1),
			logger.Error(sendErr),
		)
		return outcomeFailed
	}

	if _, err := q.tracker.RecordSent(ctx, d, res); err != nil {
		q.logItemError(ctx, d, "record sent delivery", err)
	}
	return outcomeSent
}

// dispatch resolves everything a send needs and invokes the adapter.
func (q *Queue) dispatch(ctx context.Context, ch Channel, tenantID, notificationID string) (SendResult, error) {
	adapter, err := q.registry.Lookup(ch)
	if err != nil {
		return SendResult{}, err
	}

	cfg, err := q.channelConfig(ctx, adapter, tenantID)
	if err != nil {
		return SendResult{}, err
	}
	if !cfg.Enabled {
		return SendResult{}, ErrChannelDisabled
	}
	if err := adapter.ValidateConfig(cfg).Err(); err != nil {
		return SendResult{}, err
	}

	n, err := q.store.GetNotification(ctx, notificationID)
	if err != nil {
		return SendResult{}, err
	}

	if q.limiter != nil {
		allowed, retryAfter, err := q.limiter.Allow(ctx, ch, tenantID)
		if err != nil {
			return SendResult{}, fmt.Errorf("rate limiter: %w", err)
		}
		if !allowed {
			return SendResult{}, &errRateLimited{retryAfter: retryAfter}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
	defer cancel()
	return safeSend(sendCtx, adapter, n, cfg)
}

// channelConfig resolves the tenant's config. Without one, onsite is always
// enabled and other channels fall back to the adapter's platform credentials.
func (q *Queue) channelConfig(ctx context.Context, a Adapter, tenantID string) (ChannelConfig, error) {
	ch := a.Channel()
	if tenantID != "" {
		cfg, err := q.store.ChannelConfig(ctx, tenantID, ch)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrChannelConfigNotFound) {
			return ChannelConfig{}, fmt.Errorf("load %s config: %w", ch, err)
		}
	}
	return ChannelConfig{
		TenantID: tenantID,
		Channel:  ch,
		Enabled:  ch == ChannelOnsite || a.IsEnabled(ctx, tenantID),
	}, nil
}

func (q *Queue) outboundChannels() []Channel {
	var out []Channel
	for _, ch := range q.registry.Channels() {
		if a, err := q.registry.Lookup(ch); err == nil && usesOutbound(a) {
			out = append(out, ch)
		}
	}
	return out
}

func (q *Queue) system(ctx context.Context) settings.System {
	if q.settings == nil {
		return settings.DefaultSystem()
	}
	s, err := q.settings.System(ctx)
	if err != nil {
		q.logger.LogAttrs(ctx, slog.LevelWarn, "system settings unavailable, using defaults", logger.Error(err))
		return settings.DefaultSystem()
	}
	return s.Normalize()
}

func (q *Queue) logItemError(ctx context.Context, d DeliveryStatus, msg string, err error) {
	q.logger.LogAttrs(ctx, slog.LevelError, msg,
		logger.DeliveryID(d.ID),
		logger.NotificationID(d.NotificationID),
		logger.Channel(d.Channel),
		logger.Error(err),
	)
}

func safeSend(ctx context.Context, a Adapter, n Notification, cfg ChannelConfig) (res SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAdapterPanic, r)
		}
	}()
	return a.Send(ctx, n, cfg)
}
