package channels

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Publisher pushes a stored notification to connected clients of a user.
type Publisher interface {
	Publish(ctx context.Context, n notifications.Notification) error
}

// Onsite delivers in-app notifications. The notification row is the
// delivery, so a send always succeeds; the realtime push is best effort.
type Onsite struct {
	publisher Publisher
	deps
}

// NewOnsite creates the onsite adapter. publisher may be nil.
func NewOnsite(publisher Publisher, opts ...Option) *Onsite {
	return &Onsite{publisher: publisher, deps: newDeps(opts)}
}

func (o *Onsite) Channel() notifications.Channel { return notifications.ChannelOnsite }

func (o *Onsite) Send(ctx context.Context, n notifications.Notification, _ notifications.ChannelConfig) (notifications.SendResult, error) {
	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, n); err != nil {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "realtime publish failed",
				logger.NotificationID(n.ID),
				logger.UserID(n.RecipientID),
				logger.Error(err),
			)
		}
	}
	now := o.now()
	return notifications.SendResult{Success: true, ProviderMessageID: n.ID, DeliveredAt: &now}, nil
}

func (o *Onsite) ValidateConfig(notifications.ChannelConfig) notifications.ValidationResult {
	return notifications.Valid()
}

func (o *Onsite) DeliveryStatus(context.Context, string) (notifications.DeliveryState, error) {
	return notifications.StateDelivered, nil
}

func (o *Onsite) IsEnabled(context.Context, string) bool { return true }
