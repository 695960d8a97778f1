package notifications

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelOnsite   Channel = "onsite"
	ChannelEmail    Channel = "email"
	ChannelLine     Channel = "line"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
)

var allChannels = []Channel{
	ChannelOnsite,
	ChannelEmail,
	ChannelLine,
	ChannelWhatsApp,
	ChannelTelegram,
	ChannelSMS,
	ChannelPush,
}

// Channels returns every known channel.
func Channels() []Channel {
	return slices.Clone(allChannels)
}

// ParseChannel converts a string to a known Channel.
func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
	return ch, nil
}

func (c Channel) Valid() bool {
	return slices.Contains(allChannels, c)
}

// SupportsReadReceipts reports whether the provider exposes read state.
// SMS, push and onsite never move to read through delivery tracking.
func (c Channel) SupportsReadReceipts() bool {
	switch c {
	case ChannelEmail, ChannelLine, ChannelWhatsApp, ChannelTelegram:
		return true
	default:
		return false
	}
}

// Kind is the business category of a notification, used for opt-outs.
type Kind string

const (
	KindOrder       Kind = "order"
	KindReservation Kind = "reservation"
	KindCredit      Kind = "credit"
	KindPayment     Kind = "payment"
	KindSystem      Kind = "system"
	KindMarketing   Kind = "marketing"
)

func (k Kind) Valid() bool {
	switch k {
	case KindOrder, KindReservation, KindCredit, KindPayment, KindSystem, KindMarketing:
		return true
	default:
		return false
	}
}

// Priority orders queue processing; higher values go first.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ParsePriority accepts "normal", "high" and "urgent". Empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return PriorityNormal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// DeliveryState is the lifecycle state of one channel delivery.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
	StateRead      DeliveryState = "read"
	StateFailed    DeliveryState = "failed"
	StateBounced   DeliveryState = "bounced"
)

func (s DeliveryState) Valid() bool {
	switch s {
	case StatePending, StateSent, StateDelivered, StateRead, StateFailed, StateBounced:
		return true
	default:
		return false
	}
}

// OutboundState is the state of a provider-batched outbound queue row.
type OutboundState string

const (
	OutboundPending    OutboundState = "pending"
	OutboundProcessing OutboundState = "processing"
	OutboundSent       OutboundState = "sent"
	OutboundFailed     OutboundState = "failed"
)

// Notification is a message addressed to one recipient. It is immutable
// once created apart from the read flag and the soft-delete flags.
type Notification struct {
	ID                 string            `json:"id"`
	SenderID           string            `json:"sender_id,omitempty"`
	RecipientID        string            `json:"recipient_id"`
	TenantID           string            `json:"tenant_id,omitempty"`
	Subject            string            `json:"subject"`
	Body               string            `json:"body"`
	TextBody           string            `json:"text_body,omitempty"`
	Kind               Kind              `json:"kind"`
	URL                string            `json:"url,omitempty"`
	Priority           Priority          `json:"priority"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Read               bool              `json:"read"`
	ReadAt             *time.Time        `json:"read_at,omitempty"`
	DeletedBySender    bool              `json:"-"`
	DeletedByRecipient bool              `json:"-"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// PlainText returns TextBody, or Body when no text variant was rendered.
func (n Notification) PlainText() string {
	if n.TextBody != "" {
		return n.TextBody
	}
	return n.Body
}

// DeliveryStatus is the per-channel delivery ledger row of a notification.
type DeliveryStatus struct {
	ID                string        `json:"id"`
	NotificationID    string        `json:"notification_id"`
	TenantID          string        `json:"tenant_id,omitempty"`
	RecipientID       string        `json:"recipient_id"`
	Channel           Channel       `json:"channel"`
	Status            DeliveryState `json:"status"`
	Priority          Priority      `json:"priority"`
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	DeliveredAt       *time.Time    `json:"delivered_at,omitempty"`
	ReadAt            *time.Time    `json:"read_at,omitempty"`
	Error             string        `json:"error,omitempty"`
	Attempts          int           `json:"attempts"`
	LockedUntil       *time.Time    `json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// OutboundMessage is a row of the provider-agnostic outbound queue used by
// channels that batch on the provider side.
type OutboundMessage struct {
	ID             string
	NotificationID string
	TenantID       string
	RecipientID    string
	Channel        Channel
	Priority       Priority
	Status         OutboundState
	Attempts       int
	MaxAttempts    int
	LastError      string
	LockedUntil    *time.Time
	ScheduledAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChannelConfig is a tenant's configuration for one channel.
// Credentials and Settings are opaque to everything except the adapter.
type ChannelConfig struct {
	TenantID    string
	Channel     Channel
	Enabled     bool
	Credentials map[string]string
	Settings    map[string]string
}

func (c ChannelConfig) Credential(key string) string { return c.Credentials[key] }
func (c ChannelConfig) Setting(key string) string    { return c.Settings[key] }

// Contact holds the delivery addresses of a user.
type Contact struct {
	UserID         string
	Name           string
	Email          string
	Phone          string
	LineUserID     string
	TelegramChatID string
	WhatsAppNumber string
	PushTokens     []string
	Locale         string
}

// SendResult is the normalized outcome of one adapter send.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
	// DeliveredAt is set by channels that confirm delivery synchronously.
	DeliveredAt *time.Time
}

// ValidationResult reports problems with a channel configuration.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Valid is a convenience constructor for a passing ValidationResult.
func Valid() ValidationResult { return ValidationResult{Valid: true} }

// Invalid builds a failing ValidationResult.
func Invalid(errs ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

// Err converts a failing result into an error wrapping ErrInvalidChannelConfig.
func (v ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidChannelConfig, strings.Join(v.Errors, "; "))
}

// Callback is a provider delivery report.
type Callback struct {
	Channel           Channel       `json:"channel"`
	ProviderMessageID string        `json:"providerMessageId"`
	Status            DeliveryState `json:"status"`
	DeliveredAt       *time.Time    `json:"deliveredAt,omitempty"`
	ReadAt            *time.Time    `json:"readAt,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// CallbackResult describes what a callback changed.
type CallbackResult struct {
	Matched  bool
	Applied  bool
	Delivery DeliveryStatus
}

// Rendered is templated content ready to be stored on a notification.
type Rendered struct {
	Subject  string
	Body     string
	TextBody string
	Locale   string
}

// Decision is the preference gate outcome.
type Decision struct {
	Allowed  bool
	Channels []Channel
	Reason   string
}
