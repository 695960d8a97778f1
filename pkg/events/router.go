package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

// Sender creates notifications. *notifications.Service implements it.
type Sender interface {
	Send(ctx context.Context, req notifications.Request) (notifications.Outcome, error)
}

type templateKey struct {
	event Event
	role  Role
}

// reminderEvent keys the reminder template; it is not a lifecycle event.
const reminderEvent Event = "reminder"

// Router turns reservation events into notifications for the tenant owner
// and the customer.
type Router struct {
	sender    Sender
	settings  settings.Provider
	templates map[templateKey]string
	channels  map[Role][]notifications.Channel
	links     map[Role]string
	loc       *time.Location
	immediate bool
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTemplate renders the message for role on event from a stored template.
func WithTemplate(event Event, role Role, templateID string) Option {
	return func(r *Router) { r.templates[templateKey{event, role}] = templateID }
}

// WithReminderTemplate renders reminders from a stored template.
func WithReminderTemplate(templateID string) Option {
	return WithTemplate(reminderEvent, RoleCustomer, templateID)
}

// WithChannels sets the channels requested for role. Defaults are onsite
// and email for both roles.
func WithChannels(role Role, channels ...notifications.Channel) Option {
	return func(r *Router) { r.channels[role] = slices.Clone(channels) }
}

// WithLinks sets fmt patterns for notification links; %s is replaced by
// the reservation id. An empty pattern leaves the link out.
func WithLinks(ownerPattern, customerPattern string) Option {
	return func(r *Router) {
		r.links[RoleOwner] = ownerPattern
		r.links[RoleCustomer] = customerPattern
	}
}

// WithLocation sets the zone reservation times are written in.
func WithLocation(loc *time.Location) Option {
	return func(r *Router) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithImmediateDispatch sends queued channels inline instead of leaving
// them for the batch sweep.
func WithImmediateDispatch(on bool) Option {
	return func(r *Router) { r.immediate = on }
}

// NewRouter creates a router.
func NewRouter(sender Sender, provider settings.Provider, opts ...Option) (*Router, error) {
	if sender == nil {
		return nil, ErrSenderRequired
	}
	if provider == nil {
		return nil, ErrSettingsRequired
	}
	r := &Router{
		sender:    sender,
		settings:  provider,
		templates: make(map[templateKey]string),
		channels: map[Role][]notifications.Channel{
			RoleOwner:    {notifications.ChannelOnsite, notifications.ChannelEmail},
			RoleCustomer: {notifications.ChannelOnsite, notifications.ChannelEmail},
		},
		links:  make(map[Role]string),
		loc:    time.UTC,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RouteNotification routes ec and never fails: whatever happens is logged
// and the caller's business transaction is unaffected. Use Route to
// inspect the outcome.
func (r *Router) RouteNotification(ctx context.Context, ec EventContext) {
	r.log(ctx, "reservation event routed", r.Route(ctx, ec))
}

// Route routes ec and returns what happened. Panics in collaborators are
// recovered into Result.Err.
func (r *Router) Route(ctx context.Context, ec EventContext) (res Result) {
	res = Result{Event: ec.Event, ReservationID: ec.Reservation.ID, TenantID: ec.Reservation.TenantID}
	ctx = logger.ContextWithAttrs(ctx,
		logger.Event(ec.Event),
		logger.ReservationID(ec.Reservation.ID),
	)
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: %v", ErrRoutingPanic, p)
		}
	}()

	if !ec.Event.Valid() {
		res.Err = fmt.Errorf("%w: %q", ErrUnknownEvent, ec.Event)
		return res
	}
	if err := validateReservation(ec.Reservation); err != nil {
		res.Err = err
		return res
	}

	tenant, tenantErr := r.settings.Tenant(ctx, ec.Reservation.TenantID)
	w := newWording(ec.Reservation, tenant.Name, r.loc)

	msgs, reason := plan(ec, w)
	if len(msgs) == 0 {
		res.Reason = reason
		return res
	}
	for _, m := range msgs {
		res.Deliveries = append(res.Deliveries, r.deliver(ctx, ec, m, tenant, tenantErr))
	}
	return res
}

// SendReminder is the reminder path used by the reminder sweep. Unlike
// RouteNotification it returns the Result so the caller can record it.
func (r *Router) SendReminder(ctx context.Context, rc ReminderContext) (res Result) {
	res = Result{Event: reminderEvent, ReservationID: rc.Reservation.ID, TenantID: rc.Reservation.TenantID}
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: %v", ErrRoutingPanic, p)
		}
		r.log(ctx, "reservation reminder routed", res)
	}()

	if err := validateReservation(rc.Reservation); err != nil {
		res.Err = err
		return res
	}
	reservation := rc.Reservation
	if rc.CustomerName != "" {
		reservation.CustomerName = rc.CustomerName
	}
	w := newWording(reservation, rc.TenantName, r.loc)
	ec := EventContext{Event: reminderEvent, Reservation: reservation}
	tenant := settings.Tenant{TenantID: reservation.TenantID, Name: rc.TenantName}
	res.Deliveries = append(res.Deliveries, r.deliver(ctx, ec, reminderMessage(w), tenant, nil))
	return res
}

func validateReservation(res Reservation) error {
	if res.ID == "" {
		return fmt.Errorf("%w: reservation id is required", ErrInvalidEvent)
	}
	if res.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidEvent)
	}
	return nil
}

func (r *Router) deliver(ctx context.Context, ec EventContext, m message, tenant settings.Tenant, tenantErr error) Delivery {
	d := Delivery{Role: m.role}
	switch m.role {
	case RoleOwner:
		if tenantErr != nil {
			d.Err = fmt.Errorf("load tenant %s: %w", ec.Reservation.TenantID, tenantErr)
			return d
		}
		if tenant.OwnerUserID == "" {
			d.Err = ErrMissingOwner
			return d
		}
		d.UserID = tenant.OwnerUserID
	case RoleCustomer:
		if ec.Reservation.Anonymous() {
			d.Skipped = true
			d.Reason = "anonymous customer"
			return d
		}
		d.UserID = ec.Reservation.CustomerID
	}

	req := notifications.Request{
		SenderID:    ec.ActorID,
		RecipientID: d.UserID,
		TenantID:    ec.Reservation.TenantID,
		Kind:        m.kind,
		Priority:    m.priority,
		Subject:     m.subject,
		Body:        m.body,
		Channels:    slices.Clone(r.channels[m.role]),
		Metadata: map[string]string{
			"event":          string(ec.Event),
			"reservation_id": ec.Reservation.ID,
		},
		Immediate: r.immediate,
	}
	if pattern := r.links[m.role]; pattern != "" {
		req.URL = fmt.Sprintf(pattern, ec.Reservation.ID)
	}
	if id, ok := r.templates[templateKey{ec.Event, m.role}]; ok {
		req.TemplateID = id
		req.Variables = r.variables(ec, tenant)
	}

	out, err := r.sender.Send(ctx, req)
	if err != nil {
		d.Err = err
		return d
	}
	d.Channels = out.Channels
	if out.Skipped {
		d.Skipped = true
		d.Reason = out.Reason
		return d
	}
	d.NotificationID = out.Notification.ID
	return d
}

func (r *Router) variables(ec EventContext, tenant settings.Tenant) map[string]any {
	res := ec.Reservation
	starts := res.StartsAt.In(r.loc)
	return map[string]any{
		"event": string(ec.Event),
		"reservation": map[string]any{
			"id":         res.ID,
			"resource":   res.Resource,
			"party_size": res.PartySize,
			"status":     string(res.Status),
			"date":       starts.Format("2006-01-02"),
			"time":       starts.Format("15:04"),
			"starts_at":  starts.Format(time.RFC3339),
		},
		"tenant":   map[string]any{"name": tenant.Name},
		"customer": map[string]any{"name": res.CustomerName},
		"reason":   ec.Reason,
		"amount":   ec.Amount,
	}
}

func (r *Router) log(ctx context.Context, msg string, res Result) {
	level := slog.LevelInfo
	if err := res.Error(); err != nil {
		level = slog.LevelError
		if errors.Is(err, ErrUnknownEvent) {
			level = slog.LevelWarn
		}
	}
	r.logger.LogAttrs(ctx, level, msg, res.attrs()...)
}
