package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/statemachine"
)

// DeliveryRules is the delivery status transition table.
// Moves into read are only legal on channels with read receipts.
var DeliveryRules = statemachine.NewTable[DeliveryState, DeliveryStatus]().
	Allow(StatePending, StateSent, StateFailed).
	Allow(StateSent, StateDelivered, StateFailed, StateBounced).
	AllowIf(StateSent, StateRead, readReceiptGuard).
	AllowIf(StateDelivered, StateRead, readReceiptGuard).
	Allow(StateFailed, StatePending)

func readReceiptGuard(_ context.Context, _, _ DeliveryState, d DeliveryStatus) bool {
	return d.Channel.SupportsReadReceipts()
}

// Tracker owns every write to the delivery ledger.
type Tracker struct {
	store    Storage
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger.
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithTrackerRegistry enables Refresh by giving the tracker access to adapters.
func WithTrackerRegistry(r *Registry) TrackerOption {
	return func(t *Tracker) {
		t.registry = r
	}
}

// WithTrackerClock replaces time.Now.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a delivery tracker.
func NewTracker(store Storage, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates the pending row for (notification, channel).
func (t *Tracker) Open(ctx context.Context, n Notification, ch Channel) (DeliveryStatus, error) {
	now := t.now()
	d := DeliveryStatus{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		TenantID:       n.TenantID,
		RecipientID:    n.RecipientID,
		Channel:        ch,
		Status:         StatePending,
		Priority:       n.Priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.store.CreateDelivery(ctx, d); err != nil {
		return DeliveryStatus{}, fmt.Errorf("create %s delivery: %w", ch, err)
	}
	return d, nil
}

// OpenOrGet returns the existing row for (notification, channel) or opens one.
func (t *Tracker) OpenOrGet(ctx context.Context, n Notification, ch Channel) (DeliveryStatus, error) {
	d, err := t.store.FindDelivery(ctx, n.ID, ch)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrDeliveryNotFound) {
		return DeliveryStatus{}, err
	}
	d, err = t.Open(ctx, n, ch)
	if errors.Is(err, ErrDeliveryExists) {
		return t.store.FindDelivery(ctx, n.ID, ch)
	}
	return d, err
}

// Transition moves d to the target state, applying mutate before saving.
// Illegal moves return an error wrapping ErrInvalidTransition.
func (t *Tracker) Transition(ctx context.Context, d DeliveryStatus, to DeliveryState, mutate func(*DeliveryStatus)) (DeliveryStatus, error) {
	if err := DeliveryRules.Check(ctx, d.Status, to, d); err != nil {
		return d, errors.Join(ErrInvalidTransition, err)
	}
	d.Status = to
	d.UpdatedAt = t.now()
	if mutate != nil {
		mutate(&d)
	}
	if err := t.store.UpdateDelivery(ctx, d); err != nil {
		return d, fmt.Errorf("update delivery %s: %w", d.ID, err)
	}
	return d, nil
}

// Retry starts a new cycle for a failed row.
func (t *Tracker) Retry(ctx context.Context, d DeliveryStatus) (DeliveryStatus, error) {
	if d.Status != StateFailed {
		return d, nil
	}
	return t.Transition(ctx, d, StatePending, func(d *DeliveryStatus) {
		d.Error = ""
	})
}

// RecordSent stores a successful send. Channels that confirm delivery
// synchronously move straight on to delivered.
func (t *Tracker) RecordSent(ctx context.Context, d DeliveryStatus, res SendResult) (DeliveryStatus, error) {
	d, err := t.Transition(ctx, d, StateSent, func(d *DeliveryStatus) {
		d.Attempts++
		d.ProviderMessageID = res.ProviderMessageID
		d.Error = ""
		d.LockedUntil = nil
	})
	if err != nil || res.DeliveredAt == nil {
		return d, err
	}
	at := *res.DeliveredAt
	return t.Transition(ctx, d, StateDelivered, func(d *DeliveryStatus) {
		d.DeliveredAt = &at
	})
}

// RecordFailure stores a failed attempt with its error text.
func (t *Tracker) RecordFailure(ctx context.Context, d DeliveryStatus, cause error) (DeliveryStatus, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return t.Transition(ctx, d, StateFailed, func(d *DeliveryStatus) {
		d.Attempts++
		d.Error = msg
		d.LockedUntil = nil
	})
}

// Defer releases the claim on a pending row until the given time without
// consuming an attempt.
func (t *Tracker) Defer(ctx context.Context, d DeliveryStatus, until time.Time) error {
	d.LockedUntil = &until
	d.UpdatedAt = t.now()
	return t.store.UpdateDelivery(ctx, d)
}

// MarkAsRead sets the notification's read flag and moves its sent or
// delivered rows on read-receipt channels to read. Only the recipient may
// mark a notification read.
func (t *Tracker) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	n, err := t.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.RecipientID != userID {
		return ErrNotParticipant
	}

	now := t.now()
	if err := t.store.MarkNotificationRead(ctx, notificationID, now); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	rows, err := t.store.ListDeliveries(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}

	var errs []error
	for _, d := range rows {
		if d.Status != StateSent && d.Status != StateDelivered {
			continue
		}
		if !DeliveryRules.Can(ctx, d.Status, StateRead, d) {
			continue
		}
		if _, err := t.Transition(ctx, d, StateRead, func(d *DeliveryStatus) {
			d.ReadAt = &now
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleDeliveryCallback applies a provider delivery report. Reports for
// unknown provider message ids are logged and discarded.
func (t *Tracker) HandleDeliveryCallback(ctx context.Context, cb Callback) (CallbackResult, error) {
	if !cb.Channel.Valid() || cb.ProviderMessageID == "" || !cb.Status.Valid() {
		return CallbackResult{}, ErrInvalidCallback
	}

	d, err := t.store.FindDeliveryByProviderID(ctx, cb.Channel, cb.ProviderMessageID)
	if errors.Is(err, ErrDeliveryNotFound) {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "delivery callback for unknown message discarded",
			logger.Channel(cb.Channel),
			logger.ProviderMessageID(cb.ProviderMessageID),
			logger.Event(cb.Status),
		)
		return CallbackResult{}, nil
	}
	if err != nil {
		return CallbackResult{}, err
	}

	if d.Status == cb.Status {
		return CallbackResult{Matched: true, Delivery: d}, nil
	}

	d, err = t.Transition(ctx, d, cb.Status, func(d *DeliveryStatus) {
		now := t.now()
		switch cb.Status {
		case StateDelivered:
			d.DeliveredAt = firstTime(cb.DeliveredAt, &now)
		case StateRead:
			d.ReadAt = firstTime(cb.ReadAt, &now)
			if cb.DeliveredAt != nil && d.DeliveredAt == nil {
				d.DeliveredAt = cb.DeliveredAt
			}
		case StateFailed, StateBounced:
			d.Error = cb.Error
		}
	})
	if err != nil {
		return CallbackResult{Matched: true, Delivery: d}, err
	}

	t.logger.LogAttrs(ctx, slog.LevelDebug, "delivery callback applied",
		logger.DeliveryID(d.ID),
		logger.NotificationID(d.NotificationID),
		logger.Channel(d.Channel),
		logger.Event(d.Status),
	)
	return CallbackResult{Matched: true, Applied: true, Delivery: d}, nil
}

// Statuses lists every delivery row of a notification.
func (t *Tracker) Statuses(ctx context.Context, notificationID string) ([]DeliveryStatus, error) {
	return t.store.ListDeliveries(ctx, notificationID)
}

// Refresh polls the adapter for the current provider state of a delivery
// and applies it when it is a legal move.
func (t *Tracker) Refresh(ctx context.Context, deliveryID string) (DeliveryStatus, error) {
	d, err := t.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return DeliveryStatus{}, err
	}
	if d.ProviderMessageID == "" {
		return d, ErrNoProviderMessageID
	}
	if t.registry == nil {
		return d, ErrAdapterNotFound
	}
	adapter, err := t.registry.Lookup(d.Channel)
	if err != nil {
		return d, err
	}

	state, err := adapter.DeliveryStatus(ctx, d.ProviderMessageID)
	if err != nil {
		return d, err
	}
	if state == d.Status || !DeliveryRules.Can(ctx, d.Status, state, d) {
		return d, nil
	}

	now := t.now()
	return t.Transition(ctx, d, state, func(d *DeliveryStatus) {
		switch state {
		case StateDelivered:
			d.DeliveredAt = &now
		case StateRead:
			d.ReadAt = &now
		}
	})
}

func firstTime(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}
