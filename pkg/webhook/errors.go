package webhook

import "errors"

// Configuration errors fail fast. Delivery errors carry the HTTP outcome in
// the returned Response and are classified as permanent (4xx except 408,
// 425 and 429) or temporary (network, timeouts, 5xx, throttling).
var (
	ErrRequestFailed        = errors.New("provider request failed")
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrPermanentFailure     = errors.New("permanent provider failure")
	ErrTemporaryFailure     = errors.New("temporary provider failure")
	ErrCircuitOpen          = errors.New("provider circuit breaker is open")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrInvalidURL           = errors.New("invalid URL")
	ErrTimeout              = errors.New("provider request timeout")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

// IsCircuitOpen checks if an error indicates the circuit breaker is open
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsPermanent reports whether retrying the same request cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure)
}
