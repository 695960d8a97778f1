package notifications

import "errors"

var (
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrDeliveryNotFound      = errors.New("delivery status not found")
	ErrDeliveryExists        = errors.New("delivery status already exists for channel")
	ErrOutboundNotFound      = errors.New("outbound message not found")
	ErrChannelConfigNotFound = errors.New("channel config not found")
	ErrContactNotFound       = errors.New("contact not found")

	ErrUnknownChannel       = errors.New("unknown channel")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidKind          = errors.New("invalid notification kind")
	ErrInvalidRequest       = errors.New("invalid notification request")
	ErrAdapterNotFound      = errors.New("no adapter registered for channel")
	ErrDuplicateAdapter     = errors.New("adapter already registered for channel")
	ErrInvalidChannelConfig = errors.New("invalid channel config")
	ErrChannelDisabled      = errors.New("channel disabled for tenant")
	ErrMissingRecipient     = errors.New("recipient address missing for channel")
	ErrAdapterPanic         = errors.New("adapter panicked")
	ErrSendFailed           = errors.New("provider rejected message")
	ErrInvalidTransition    = errors.New("invalid delivery status transition")
	ErrInvalidCallback      = errors.New("invalid delivery callback")
	ErrNoProviderMessageID  = errors.New("delivery has no provider message id")
	ErrStatusUnavailable    = errors.New("provider does not report delivery status")
	ErrNotParticipant       = errors.New("user is not a participant of the notification")
)
