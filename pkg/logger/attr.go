package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// Empty identifiers produce an empty Attr.
func UserID(id string) slog.Attr {
	return optionalString("user_id", id)
}

// TenantID records the tenant identifier under the key "tenant_id".
// Empty identifiers produce an empty Attr so tenant-less notifications log cleanly.
func TenantID(id string) slog.Attr {
	return optionalString("tenant_id", id)
}

// NotificationID records the notification identifier under the key "notification_id".
func NotificationID(id string) slog.Attr {
	return optionalString("notification_id", id)
}

// DeliveryID records the delivery status row identifier under the key "delivery_id".
func DeliveryID(id string) slog.Attr {
	return optionalString("delivery_id", id)
}

// Channel records the delivery channel name under the key "channel".
func Channel[T ~string](ch T) slog.Attr {
	return optionalString("channel", string(ch))
}

// ProviderMessageID records the provider-side message id under the key "provider_message_id".
func ProviderMessageID(id string) slog.Attr {
	return optionalString("provider_message_id", id)
}

// ReservationID records the reservation identifier under the key "reservation_id".
func ReservationID(id string) slog.Attr {
	return optionalString("reservation_id", id)
}

// Event records the event name under the key "event".
func Event[T ~string](name T) slog.Attr {
	return slog.String("event", string(name))
}

// Reason records a human readable reason under the key "reason".
func Reason(reason string) slog.Attr {
	return optionalString("reason", reason)
}

// Attempt records the delivery attempt number under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// RetryAfter records a backoff hint under the key "retry_after".
func RetryAfter(d time.Duration) slog.Attr {
	return slog.Duration("retry_after", d)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func optionalString(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
