package webhook

import (
	"net/http"
	"time"
)

type requestOptions struct {
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client

	maxRetries      int
	backoffStrategy BackoffStrategy

	basicUser       string
	basicPassword   string
	signatureSecret string

	circuitBreaker *CircuitBreaker
}

// Requests are not retried by default: a failed send is recorded and picked
// up by the next batch sweep.
func defaultRequestOptions() *requestOptions {
	return &requestOptions{
		timeout:         10 * time.Second,
		headers:         make(map[string]string),
		backoffStrategy: DefaultBackoffStrategy(),
	}
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

// WithTimeout sets the per-attempt timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(o *requestOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithBearerToken sets the Authorization header.
func WithBearerToken(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithBasicAuth sets HTTP basic credentials.
func WithBasicAuth(user, password string) RequestOption {
	return func(o *requestOptions) {
		o.basicUser = user
		o.basicPassword = password
	}
}

// WithRetry retries temporary failures up to n times using strategy.
// A Retry-After response header extends the delay.
func WithRetry(n int, strategy BackoffStrategy) RequestOption {
	return func(o *requestOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
		if strategy != nil {
			o.backoffStrategy = strategy
		}
	}
}

// WithSignature signs the body with HMAC-SHA256.
// Adds X-Webhook-Signature, X-Webhook-Timestamp, and X-Webhook-ID headers.
func WithSignature(secret string) RequestOption {
	return func(o *requestOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient overrides the client for one request.
func WithHTTPClient(client *http.Client) RequestOption {
	return func(o *requestOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCircuitBreaker guards the request. Reuse one breaker per provider.
func WithCircuitBreaker(cb *CircuitBreaker) RequestOption {
	return func(o *requestOptions) {
		o.circuitBreaker = cb
	}
}
