package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

// DefaultWindow is the half-width of the due window around now+lead time.
const DefaultWindow = 5 * time.Minute

// recordTimeout bounds the reminder record insert, which outlives the sweep
// context once the notification has been dispatched.
const recordTimeout = 10 * time.Second

// actionable are the statuses a reminder is sent for.
var actionable = []events.Status{events.StatusReadyToConfirm, events.StatusReady}

// Reminder sends one reservation reminder. *events.Router implements it.
type Reminder interface {
	SendReminder(ctx context.Context, rc events.ReminderContext) events.Result
}

// Summary reports one sweep.
type Summary struct {
	Tenants int
	Due     int
	Sent    int
	Failed  int
	// Duplicates counts reservations another sweep recorded first.
	Duplicates int
	// Overlapped is set when the sweep was skipped because one was running.
	Overlapped bool
}

// Processor finds reservations whose reminder is due and sends each once.
type Processor struct {
	store    Store
	reminder Reminder
	settings settings.Provider
	contacts notifications.ContactStore
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger

	running sync.Mutex
}

// Option configures a Processor.
type Option func(*Processor)

// WithContacts resolves customer names for reminder wording.
func WithContacts(c notifications.ContactStore) Option {
	return func(p *Processor) { p.contacts = c }
}

// WithWindow changes the due window half-width.
func WithWindow(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates a reminder processor.
func NewProcessor(store Store, reminder Reminder, provider settings.Provider, opts ...Option) (*Processor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if reminder == nil {
		return nil, ErrRouterRequired
	}
	if provider == nil {
		return nil, ErrSettingsRequired
	}
	p := &Processor{
		store:    store,
		reminder: reminder,
		settings: provider,
		window:   DefaultWindow,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessDueReminders runs one sweep. Every due reservation gets exactly one
// reminder record whether or not its notification went out; the record is
// what keeps the next sweep from reminding again. A sweep that starts while
// another runs in this process returns immediately with Overlapped set.
func (p *Processor) ProcessDueReminders(ctx context.Context) (Summary, error) {
	if !p.running.TryLock() {
		return Summary{Overlapped: true}, nil
	}
	defer p.running.Unlock()

	tenants, err := p.settings.Tenants(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list tenants: %w", err)
	}

	var (
		sum  Summary
		errs []error
		now  = p.now()
	)
	for _, t := range tenants {
		if !t.RemindersActive() {
			continue
		}
		sum.Tenants++
		if err := p.processTenant(ctx, t, now, &sum); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", t.TenantID, err))
		}
	}

	p.logger.LogAttrs(ctx, slog.LevelInfo, "reminder sweep finished",
		slog.Int("tenants", sum.Tenants),
		slog.Int("due", sum.Due),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
		slog.Int("duplicates", sum.Duplicates),
	)
	return sum, errors.Join(errs...)
}

func (p *Processor) processTenant(ctx context.Context, t settings.Tenant, now time.Time, sum *Summary) error {
	target := now.Add(t.ReminderLeadTime)
	due, err := p.store.DueReservations(ctx, t.TenantID, target.Add(-p.window), target.Add(p.window), actionable)
	if err != nil {
		return fmt.Errorf("query due reservations: %w", err)
	}
	sum.Due += len(due)

	var errs []error
	for _, res := range due {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := p.remind(ctx, t, res, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) remind(ctx context.Context, t settings.Tenant, res events.Reservation, sum *Summary) error {
	rc := events.ReminderContext{
		Reservation:  res,
		TenantName:   t.Name,
		CustomerName: p.customerName(ctx, res),
		LeadTime:     t.ReminderLeadTime,
	}
	result := p.reminder.SendReminder(ctx, rc)

	rec := Record{
		ReservationID: res.ID,
		TenantID:      res.TenantID,
		ScheduledAt:   res.StartsAt.Add(-t.ReminderLeadTime),
		SentAt:        p.now(),
		Status:        RecordSent,
	}
	switch {
	case result.Error() != nil:
		rec.Status = RecordFailed
		rec.Error = result.Error().Error()
	case result.Sent() == 0:
		rec.Status = RecordFailed
		rec.Error = "not sent: " + skipReason(result)
	default:
		for _, d := range result.Deliveries {
			if d.NotificationID != "" {
				rec.NotificationID = d.NotificationID
				break
			}
		}
	}

	// The record is written after dispatch and independently of its outcome,
	// also when the sweep is cancelled in between.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.store.InsertReminder(recCtx, rec); err != nil {
		if errors.Is(err, ErrReminderExists) {
			sum.Duplicates++
			p.logger.LogAttrs(ctx, slog.LevelWarn, "reminder already recorded by another sweep",
				logger.ReservationID(res.ID),
				logger.TenantID(res.TenantID),
			)
			return nil
		}
		return fmt.Errorf("record reminder %s: %w", res.ID, err)
	}

	if rec.Status == RecordSent {
		sum.Sent++
	} else {
		sum.Failed++
		p.logger.LogAttrs(ctx, slog.LevelWarn, "reservation reminder not delivered",
			logger.ReservationID(res.ID),
			logger.TenantID(res.TenantID),
			logger.Reason(rec.Error),
		)
	}
	return nil
}

func (p *Processor) customerName(ctx context.Context, res events.Reservation) string {
	if res.CustomerName != "" || res.CustomerID == "" || p.contacts == nil {
		return res.CustomerName
	}
	c, err := p.contacts.Contact(ctx, res.CustomerID)
	if err != nil {
		if !errors.Is(err, notifications.ErrContactNotFound) {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "load customer contact",
				logger.ReservationID(res.ID),
				logger.UserID(res.CustomerID),
				logger.Error(err),
			)
		}
		return ""
	}
	return c.Name
}

func skipReason(r events.Result) string {
	for _, d := range r.Deliveries {
		if d.Reason != "" {
			return d.Reason
		}
	}
	if r.Reason != "" {
		return r.Reason
	}
	return "no recipient"
}
