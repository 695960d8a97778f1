package realtime

import "errors"

var (
	ErrHubClosed      = errors.New("realtime: hub is closed")
	ErrMissingUser    = errors.New("realtime: notification has no recipient")
	ErrInvalidToken   = errors.New("realtime: invalid subscriber token")
	ErrMissingToken   = errors.New("realtime: subscriber token is required")
	ErrSecretRequired = errors.New("realtime: token secret is required")
)
