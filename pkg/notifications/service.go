package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Request describes a notification to create.
type Request struct {
	SenderID    string
	RecipientID string
	TenantID    string
	Kind        Kind
	Priority    Priority
	Subject     string
	Body        string
	TextBody    string
	URL         string
	Metadata    map[string]string
	// Channels defaults to onsite only.
	Channels []Channel

	// TemplateID renders Subject, Body and TextBody from a stored template.
	TemplateID string
	// Locale overrides the recipient's locale for template rendering.
	Locale    string
	Variables map[string]any

	// Immediate dispatches the queued channels before returning instead of
	// leaving them to the next batch sweep.
	Immediate bool
}

// Outcome reports what Send did.
type Outcome struct {
	Notification Notification
	Channels     []Channel
	// Skipped is true when the preference gate rejected the request.
	Skipped bool
	Reason  string
	Batch   BatchResult
}

// Service creates notifications and exposes inbox operations.
type Service struct {
	store    Storage
	queue    *Queue
	tracker  *Tracker
	gate     Gate
	renderer Renderer
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGate sets the preference gate. Without one every requested channel is used.
func WithGate(g Gate) ServiceOption {
	return func(s *Service) { s.gate = g }
}

// WithRenderer enables TemplateID requests.
func WithRenderer(r Renderer) ServiceOption {
	return func(s *Service) { s.renderer = r }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the notification service.
func NewService(store Storage, queue *Queue, tracker *Tracker, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		queue:   queue,
		tracker: tracker,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs the preference gate, renders the template if any, persists the
// notification and enqueues its approved channels. A gate rejection is not
// an error: the Outcome is marked Skipped with the reason.
func (s *Service) Send(ctx context.Context, req Request) (Outcome, error) {
	if err := validateRequest(&req); err != nil {
		return Outcome{}, err
	}

	channels := req.Channels
	if s.gate != nil {
		decision, err := s.gate.ShouldSend(ctx, req.RecipientID, req.TenantID, req.Kind, channels)
		if err != nil {
			return Outcome{}, fmt.Errorf("preference check: %w", err)
		}
		if !decision.Allowed {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "notification blocked by preferences",
				logger.UserID(req.RecipientID),
				logger.TenantID(req.TenantID),
				logger.Reason(decision.Reason),
			)
			return Outcome{Skipped: true, Reason: decision.Reason}, nil
		}
		channels = decision.Channels
	}

	if req.TemplateID != "" {
		if s.renderer == nil {
			return Outcome{}, fmt.Errorf("%w: template %q requested without a renderer", ErrInvalidRequest, req.TemplateID)
		}
		target := req.Locale
		if target == "" {
			target = req.RecipientID
		}
		rendered, err := s.renderer.Render(ctx, req.TemplateID, target, req.Variables)
		if err != nil {
			return Outcome{}, fmt.Errorf("render template %s: %w", req.TemplateID, err)
		}
		req.Subject = rendered.Subject
		req.Body = rendered.Body
		req.TextBody = rendered.TextBody
	}

	now := s.now()
	n := Notification{
		ID:          uuid.NewString(),
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		TenantID:    req.TenantID,
		Subject:     req.Subject,
		Body:        req.Body,
		TextBody:    req.TextBody,
		Kind:        req.Kind,
		URL:         req.URL,
		Priority:    req.Priority,
		Metadata:    maps.Clone(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return Outcome{}, fmt.Errorf("store notification: %w", err)
	}

	out := Outcome{Notification: n, Channels: channels}
	if err := s.queue.Enqueue(ctx, n, channels); err != nil {
		return out, fmt.Errorf("enqueue notification %s: %w", n.ID, err)
	}

	if req.Immediate {
		res, err := s.queue.ProcessNotification(ctx, n.ID)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "immediate dispatch failed, left for batch sweep",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
		}
		out.Batch = res
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "notification created",
		logger.NotificationID(n.ID),
		logger.UserID(n.RecipientID),
		logger.TenantID(n.TenantID),
		slog.String("kind", string(n.Kind)),
		slog.Any("channels", channels),
	)
	return out, nil
}

// SendToUsers sends the same request to several recipients. Failures for
// one recipient do not stop the others; they are joined in the error.
func (s *Service) SendToUsers(ctx context.Context, userIDs []string, req Request) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(userIDs))
	var errs []error
	for _, id := range userIDs {
		r := req
		r.RecipientID = id
		r.Channels = slices.Clone(req.Channels)
		out, err := s.Send(ctx, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", id, err))
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}

// Get returns a notification visible to userID.
func (s *Service) Get(ctx context.Context, notificationID, userID string) (Notification, error) {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return Notification{}, err
	}
	if !visibleTo(n, userID, false) && !visibleTo(n, userID, true) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

// List returns the user's inbox, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Notification, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return s.store.ListNotifications(ctx, opts)
}

// CountUnread counts unread, non-deleted notifications for the recipient.
func (s *Service) CountUnread(ctx context.Context, userID, tenantID string) (int, error) {
	return s.store.CountUnread(ctx, userID, tenantID)
}

// MarkAsRead marks a notification read for its recipient.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	return s.tracker.MarkAsRead(ctx, notificationID, userID)
}

// Delete hides the notification from userID's side only. The record is kept.
func (s *Service) Delete(ctx context.Context, notificationID, userID string) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	bySender := n.SenderID != "" && n.SenderID == userID
	byRecipient := n.RecipientID == userID
	if !bySender && !byRecipient {
		return ErrNotParticipant
	}
	return s.store.MarkNotificationDeleted(ctx, notificationID, bySender, byRecipient)
}

// Statuses lists per-channel delivery rows of a notification.
func (s *Service) Statuses(ctx context.Context, notificationID string) ([]DeliveryStatus, error) {
	return s.tracker.Statuses(ctx, notificationID)
}

func validateRequest(req *Request) error {
	if req.RecipientID == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}
	if req.Kind == "" {
		req.Kind = KindSystem
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	if req.Priority < PriorityNormal || req.Priority > PriorityUrgent {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, req.Priority)
	}
	if len(req.Channels) == 0 {
		req.Channels = []Channel{ChannelOnsite}
	}
	seen := make(map[Channel]struct{}, len(req.Channels))
	uniq := make([]Channel, 0, len(req.Channels))
	for _, ch := range req.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		uniq = append(uniq, ch)
	}
	req.Channels = uniq
	if req.TemplateID == "" && req.Subject == "" && req.Body == "" {
		return fmt.Errorf("%w: subject or body is required", ErrInvalidRequest)
	}
	return nil
}
