package events

import "errors"

var (
	ErrUnknownEvent       = errors.New("events: unknown event")
	ErrMissingOwner       = errors.New("events: tenant has no owner to notify")
	ErrInvalidEvent       = errors.New("events: invalid event payload")
	ErrRoutingPanic       = errors.New("events: routing panicked")
	ErrSenderRequired     = errors.New("events: notification sender is required")
	ErrSettingsRequired   = errors.New("events: settings provider is required")
	ErrKafkaNotConfigured = errors.New("events: kafka brokers and topic are required")
)
