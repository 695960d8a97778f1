package events

import (
	"errors"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Result describes what routing one event did. RouteNotification logs and
// discards it; Route and SendReminder hand it to the caller.
type Result struct {
	Event         Event
	ReservationID string
	TenantID      string
	Deliveries    []Delivery
	// Reason explains an event that matched no recipient rule.
	Reason string
	// Err is a failure before any recipient was considered.
	Err error
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	Role           Role
	UserID         string
	NotificationID string
	Channels       []notifications.Channel
	// Skipped is set for anonymous customers and preference rejections.
	Skipped bool
	Reason  string
	Err     error
}

// Error joins the routing error with every recipient error.
func (r Result) Error() error {
	errs := []error{r.Err}
	for _, d := range r.Deliveries {
		errs = append(errs, d.Err)
	}
	return errors.Join(errs...)
}

// Sent counts recipients for whom a notification was created.
func (r Result) Sent() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.NotificationID != "" {
			n++
		}
	}
	return n
}

func (r Result) attrs() []slog.Attr {
	attrs := []slog.Attr{
		logger.Event(r.Event),
		logger.ReservationID(r.ReservationID),
		logger.TenantID(r.TenantID),
		slog.Int("sent", r.Sent()),
		logger.Reason(r.Reason),
	}
	for _, d := range r.Deliveries {
		attrs = append(attrs, logger.Group(string(d.Role),
			logger.UserID(d.UserID),
			logger.NotificationID(d.NotificationID),
			slog.Bool("skipped", d.Skipped),
			logger.Reason(d.Reason),
			logger.Error(d.Err),
		))
	}
	return append(attrs, logger.Error(r.Err))
}
