package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent       = "notifykit/1.0"
	maxResponseBody = 64 * 1024
)

// Response is the outcome of the last request attempt.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	Duration   time.Duration
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the response body into v.
func (r Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty response body", ErrInvalidPayload)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	return nil
}

// Client sends JSON requests to provider APIs. It is shared by the channel
// adapters and safe for concurrent use.
type Client struct {
	// client is reused across requests for connection pooling
	client *http.Client
}

// NewClient creates a client with a pooled transport.
func NewClient() *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewClientWithHTTP wraps an existing http.Client, e.g. an oauth2 client or
// one pointing at a test server.
func NewClientWithHTTP(client *http.Client) *Client {
	if client == nil {
		return NewClient()
	}
	return &Client{client: client}
}

// PostJSON marshals data and POSTs it to rawURL. A non-2xx status is
// returned as an error together with the Response so callers can read the
// provider's error payload.
func (c *Client) PostJSON(ctx context.Context, rawURL string, data any, opts ...RequestOption) (Response, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal payload to JSON: %w", err)
	}
	if len(payload) == 0 || string(payload) == "null" {
		return Response{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return c.Do(ctx, http.MethodPost, rawURL, payload, append([]RequestOption{WithHeader("Content-Type", "application/json")}, opts...)...)
}

// PostForm sends an application/x-www-form-urlencoded body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, opts ...RequestOption) (Response, error) {
	return c.Do(ctx, http.MethodPost, rawURL, []byte(form.Encode()),
		append([]RequestOption{WithHeader("Content-Type", "application/x-www-form-urlencoded")}, opts...)...)
}

// Get issues a GET request, used for provider status polling.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil, opts...)
}

// Do sends body with retries, signing and circuit breaking as configured.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte, opts ...RequestOption) (Response, error) {
	if err := validateURL(rawURL); err != nil {
		return Response{}, err
	}

	options := defaultRequestOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.circuitBreaker != nil && !options.circuitBreaker.Allow() {
		return Response{}, ErrCircuitOpen
	}

	start := time.Now()
	var (
		resp    Response
		lastErr error
	)
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			delay := options.backoffStrategy.NextInterval(attempt)
			if ra := retryAfterHeader(resp.Header); ra > delay {
				delay = ra
			}
			select {
			case <-ctx.Done():
				return resp, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, lastErr = c.attempt(ctx, method, rawURL, body, options)
		resp.Attempts = attempt + 1
		resp.Duration = time.Since(start)

		if options.circuitBreaker != nil {
			// Client errors say nothing about provider health.
			if lastErr == nil || isPermanent(resp.StatusCode) {
				options.circuitBreaker.RecordSuccess()
			} else {
				options.circuitBreaker.RecordFailure()
			}
		}

		if lastErr == nil {
			return resp, nil
		}
		if isPermanent(resp.StatusCode) {
			return resp, fmt.Errorf("%w: %w", ErrPermanentFailure, lastErr)
		}
	}

	if options.maxRetries == 0 {
		return resp, lastErr
	}
	return resp, fmt.Errorf("%w after %d attempts: %w", ErrRequestFailed, options.maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, body []byte, options *requestOptions) (Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, reader)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}
	if options.basicUser != "" {
		req.SetBasicAuth(options.basicUser, options.basicPassword)
	}
	if options.signatureSecret != "" && len(body) > 0 {
		sig, err := SignPayload(options.signatureSecret, body)
		if err != nil {
			return Response{}, fmt.Errorf("failed to sign payload: %w", err)
		}
		for k, v := range sig.Headers() {
			req.Header.Set(k, v)
		}
	}

	client := c.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	res, err := client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return Response{}, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = res.Body.Close() }()

	resp := Response{StatusCode: res.StatusCode, Header: res.Header}
	resp.Body, _ = io.ReadAll(io.LimitReader(res.Body, maxResponseBody))

	if !resp.Success() {
		if isPermanent(resp.StatusCode) {
			return resp, statusError(resp)
		}
		return resp, fmt.Errorf("%w: %w", ErrTemporaryFailure, statusError(resp))
	}
	return resp, nil
}

func statusError(resp Response) error {
	msg := fmt.Sprintf("provider returned status %d", resp.StatusCode)
	if len(resp.Body) > 0 {
		// Single line, bounded, safe to log.
		b := strings.ReplaceAll(string(resp.Body), "\n", " ")
		if len(b) > 200 {
			b = b[:200] + "..."
		}
		msg += ": " + b
	}
	return errors.New(msg)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

// isPermanent treats 4xx as final except timeout, too-early and throttling.
func isPermanent(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}

// retryAfterHeader parses a delta-seconds Retry-After value.
func retryAfterHeader(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d
}
