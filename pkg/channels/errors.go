package channels

import "errors"

var (
	ErrProviderRejected  = errors.New("channels: provider rejected the message")
	ErrMissingCredential = errors.New("channels: missing credential")
	ErrInvalidRecipient  = errors.New("channels: invalid recipient address")
)
