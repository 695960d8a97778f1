package channels_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func contacts(cs ...notifications.Contact) *notifications.MemoryStorage {
	s := notifications.NewMemoryStorage()
	for _, c := range cs {
		s.PutContact(c)
	}
	return s
}

func testOptions(store notifications.ContactStore, srv *httptest.Server) []channels.Option {
	opts := []channels.Option{
		channels.WithContacts(store),
		channels.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if srv != nil {
		opts = append(opts, channels.WithHTTPClient(srv.Client()))
	}
	return opts
}

func notification() notifications.Notification {
	return notifications.Notification{
		ID:          "6f1c1d2e-7a8b-4c9d-8e0f-1a2b3c4d5e6f",
		RecipientID: "user-1",
		TenantID:    "tenant-1",
		Subject:     "Reservation confirmed",
		Body:        "<p>See you at 19:00</p>",
		TextBody:    "See you at 19:00",
		Kind:        notifications.KindReservation,
		URL:         "https://shop.example.com/r/1",
	}
}

// capture records requests hitting a test server.
type capture struct {
	mu       sync.Mutex
	requests []captured
}

type captured struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func (c *capture) record(r *http.Request) captured {
	body, _ := io.ReadAll(r.Body)
	rec := captured{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body}
	c.mu.Lock()
	c.requests = append(c.requests, rec)
	c.mu.Unlock()
	return rec
}

func (c *capture) all() []captured {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]captured(nil), c.requests...)
}

func serve(t *testing.T, h func(w http.ResponseWriter, r *http.Request, rec captured)) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, c.record(r))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []notifications.Notification
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, n notifications.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, n)
	return p.err
}
