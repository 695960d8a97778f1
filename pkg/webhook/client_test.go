package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

func TestClient_PostJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "notifykit/1.0", r.Header.Get("User-Agent"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hello", in["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))
	t.Cleanup(server.Close)

	resp, err := webhook.NewClient().PostJSON(context.Background(), server.URL,
		map[string]string{"text": "hello"}, webhook.WithBearerToken("tok"))
	require.NoError(t, err)
	assert.True(t, resp.Success())
	assert.Equal(t, 1, resp.Attempts)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, "msg-1", out.ID)
}

func TestClient_PostForm(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sid", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550100", r.PostForm.Get("To"))
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	resp, err := webhook.NewClient().PostForm(context.Background(), server.URL,
		url.Values{"To": {"+15550100"}}, webhook.WithBasicAuth("sid", "secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "bad request is permanent", status: http.StatusBadRequest, permanent: true},
		{name: "unauthorized is permanent", status: http.StatusUnauthorized, permanent: true},
		{name: "throttled is temporary", status: http.StatusTooManyRequests},
		{name: "server error is temporary", status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			t.Cleanup(server.Close)

			resp, err := webhook.NewClient().PostJSON(context.Background(), server.URL, map[string]int{"a": 1})
			require.Error(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, `{"message":"nope"}`, string(resp.Body))
			assert.Equal(t, tt.permanent, webhook.IsPermanent(err))
			if !tt.permanent {
				assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
			}
			assert.Equal(t, int32(1), calls.Load(), "no retries by default")
		})
	}
}

func TestClient_Retry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	resp, err := webhook.NewClient().Get(context.Background(), server.URL,
		webhook.WithRetry(3, webhook.FixedBackoff{Interval: time.Millisecond}))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
}

func TestClient_PermanentNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	_, err := webhook.NewClient().Get(context.Background(), server.URL,
		webhook.WithRetry(3, webhook.FixedBackoff{Interval: time.Millisecond}))
	assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(server.Close)

	_, err := webhook.NewClient().Get(context.Background(), server.URL, webhook.WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, webhook.ErrTimeout)
}

func TestClient_InvalidInput(t *testing.T) {
	t.Parallel()

	c := webhook.NewClient()
	ctx := context.Background()

	_, err := c.PostJSON(ctx, "", map[string]int{"a": 1})
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)
	_, err = c.PostJSON(ctx, "ftp://example.com", map[string]int{"a": 1})
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)
	_, err = c.PostJSON(ctx, "https://example.com", nil)
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestClient_CircuitBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c := webhook.NewClient()
	cb := webhook.NewCircuitBreaker(2, 1, time.Hour)
	for range 2 {
		_, err := c.Get(context.Background(), server.URL, webhook.WithCircuitBreaker(cb))
		require.Error(t, err)
	}
	_, err := c.Get(context.Background(), server.URL, webhook.WithCircuitBreaker(cb))
	assert.True(t, webhook.IsCircuitOpen(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	cb := webhook.NewCircuitBreaker(1, 1, time.Hour)
	for range 3 {
		_, err := webhook.NewClient().Get(context.Background(), server.URL, webhook.WithCircuitBreaker(cb))
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
	}
	assert.Equal(t, webhook.CircuitClosed, cb.State())
}

func TestClient_Signature(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := webhook.VerifyRequest(r, "s3cret", time.Minute, 1<<20)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		again, _ := io.ReadAll(r.Body)
		assert.Equal(t, body, again)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	_, err := webhook.NewClient().PostJSON(context.Background(), server.URL,
		map[string]string{"status": "delivered"}, webhook.WithSignature("s3cret"))
	require.NoError(t, err)
}
