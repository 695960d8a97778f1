package notifications

import (
	"context"
	"time"
)

// ListOptions filters an inbox listing.
type ListOptions struct {
	UserID   string
	TenantID string // empty lists across tenants
	// Sent lists notifications sent by UserID instead of received.
	Sent       bool
	OnlyUnread bool
	Kinds      []Kind
	Limit      int
	Offset     int
}

// ClaimOptions selects queue items for processing.
type ClaimOptions struct {
	NotificationID string
	TenantID       string
	Limit          int
	// MaxAttempts excludes items whose attempt count reached the ceiling.
	MaxAttempts int
	Now         time.Time
	// LeaseUntil is written to claimed items so concurrent sweeps skip them.
	LeaseUntil time.Time
	// ExcludeChannels skips delivery rows driven by the outbound queue.
	ExcludeChannels []Channel
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n Notification) error
	GetNotification(ctx context.Context, id string) (Notification, error)
	ListNotifications(ctx context.Context, opts ListOptions) ([]Notification, error)
	CountUnread(ctx context.Context, userID, tenantID string) (int, error)
	MarkNotificationRead(ctx context.Context, id string, at time.Time) error
	MarkNotificationDeleted(ctx context.Context, id string, bySender, byRecipient bool) error
}

// DeliveryStore persists per-channel delivery rows.
type DeliveryStore interface {
	// CreateDelivery returns ErrDeliveryExists for a duplicate (notification, channel).
	CreateDelivery(ctx context.Context, d DeliveryStatus) error
	GetDelivery(ctx context.Context, id string) (DeliveryStatus, error)
	FindDelivery(ctx context.Context, notificationID string, ch Channel) (DeliveryStatus, error)
	FindDeliveryByProviderID(ctx context.Context, ch Channel, providerMessageID string) (DeliveryStatus, error)
	ListDeliveries(ctx context.Context, notificationID string) ([]DeliveryStatus, error)
	UpdateDelivery(ctx context.Context, d DeliveryStatus) error
	// ClaimDeliveries leases pending and failed rows that still have attempts
	// left, ordered by priority desc then creation time asc.
	ClaimDeliveries(ctx context.Context, opts ClaimOptions) ([]DeliveryStatus, error)
}

// OutboundStore persists the outbound queue.
type OutboundStore interface {
	EnqueueOutbound(ctx context.Context, m OutboundMessage) error
	// ClaimOutbound leases pending and failed rows below their MaxAttempts,
	// marking them processing.
	ClaimOutbound(ctx context.Context, opts ClaimOptions) ([]OutboundMessage, error)
	UpdateOutbound(ctx context.Context, m OutboundMessage) error
}

// ChannelConfigStore reads tenant channel configuration.
type ChannelConfigStore interface {
	// ChannelConfig returns ErrChannelConfigNotFound when the tenant has none.
	ChannelConfig(ctx context.Context, tenantID string, ch Channel) (ChannelConfig, error)
}

// ContactStore resolves delivery addresses.
type ContactStore interface {
	// Contact returns ErrContactNotFound for unknown users.
	Contact(ctx context.Context, userID string) (Contact, error)
}

// Storage is the full datastore the queue, tracker and service work against.
type Storage interface {
	NotificationStore
	DeliveryStore
	OutboundStore
	ChannelConfigStore
}

// Gate decides which channels a notification may use.
type Gate interface {
	ShouldSend(ctx context.Context, userID, tenantID string, kind Kind, channels []Channel) (Decision, error)
}

// Renderer renders a stored template for a user id or locale.
type Renderer interface {
	Render(ctx context.Context, templateID, userIDOrLocale string, vars map[string]any) (Rendered, error)
}

// RateLimiter admits sends per (channel, tenant).
type RateLimiter interface {
	Allow(ctx context.Context, ch Channel, tenantID string) (allowed bool, retryAfter time.Duration, err error)
}
