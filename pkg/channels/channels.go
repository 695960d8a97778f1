package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// deps are the collaborators shared by the HTTP based adapters.
type deps struct {
	contacts   notifications.ContactStore
	client     *webhook.Client
	httpClient *http.Client
	breakers   *webhook.Breakers
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an adapter.
type Option func(*deps)

// WithContacts sets where recipient addresses are resolved.
func WithContacts(s notifications.ContactStore) Option {
	return func(d *deps) { d.contacts = s }
}

// WithHTTPClient sets the HTTP client used to reach providers.
func WithHTTPClient(c *http.Client) Option {
	return func(d *deps) {
		if c != nil {
			d.httpClient = c
			d.client = webhook.NewClientWithHTTP(c)
		}
	}
}

// WithBreakers shares circuit breakers between adapters.
func WithBreakers(b *webhook.Breakers) Option {
	return func(d *deps) {
		if b != nil {
			d.breakers = b
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *deps) {
		if now != nil {
			d.now = now
		}
	}
}

func newDeps(opts []Option) deps {
	d := deps{
		client:     webhook.NewClient(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breakers:   webhook.NewBreakers(0, 0, 0),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// contact resolves the recipient. A missing contact store or record is a
// missing recipient.
func (d deps) contact(ctx context.Context, userID string) (notifications.Contact, error) {
	if d.contacts == nil {
		return notifications.Contact{}, fmt.Errorf("%w: no contact store", notifications.ErrMissingRecipient)
	}
	c, err := d.contacts.Contact(ctx, userID)
	if errors.Is(err, notifications.ErrContactNotFound) {
		return notifications.Contact{}, fmt.Errorf("%w: unknown user %s", notifications.ErrMissingRecipient, userID)
	}
	if err != nil {
		return notifications.Contact{}, fmt.Errorf("load contact: %w", err)
	}
	return c, nil
}

func (d deps) breaker(ch notifications.Channel) webhook.RequestOption {
	return webhook.WithCircuitBreaker(d.breakers.For(string(ch)))
}

// failed is the result returned together with err.
func failed(err error) (notifications.SendResult, error) {
	return notifications.SendResult{Success: false, Error: err.Error()}, err
}

func sent(providerMessageID string) (notifications.SendResult, error) {
	return notifications.SendResult{Success: true, ProviderMessageID: providerMessageID}, nil
}

// credential returns the tenant value for key, else fallback.
func credential(cfg notifications.ChannelConfig, key, fallback string) string {
	if v := strings.TrimSpace(cfg.Credential(key)); v != "" {
		return v
	}
	return fallback
}

// composeText flattens a notification for text-only channels.
func composeText(n notifications.Notification) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Subject, n.PlainText(), n.URL} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

const ellipsis = "…"

// truncate limits s to n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + ellipsis
}

// split cuts s into at most maxParts chunks of size runes, preferring to
// break on a newline or space in the last fifth of a chunk. Text beyond
// the last chunk is dropped and the chunk ends with an ellipsis.
func split(s string, size, maxParts int) []string {
	r := []rune(s)
	var out []string
	for len(out) < maxParts {
		r = trimLeadingSpace(r)
		if len(r) == 0 {
			break
		}
		if len(r) <= size {
			out = append(out, string(r))
			r = nil
			break
		}
		cut := size
		for i := size - 1; i >= size*4/5; i-- {
			if r[i] == '\n' || r[i] == ' ' {
				cut = i + 1
				break
			}
		}
		if chunk := strings.TrimRight(string(r[:cut]), " \n"); chunk != "" {
			out = append(out, chunk)
		}
		r = r[cut:]
	}
	if len(trimLeadingSpace(r)) > 0 && len(out) > 0 {
		last := []rune(out[len(out)-1])
		if len(last) > 0 {
			out[len(out)-1] = string(last[:len(last)-1]) + ellipsis
		}
	}
	return out
}

func trimLeadingSpace(r []rune) []rune {
	for len(r) > 0 && (r[0] == ' ' || r[0] == '\n') {
		r = r[1:]
	}
	return r
}

// New builds every adapter from platform configuration. Adapters without
// platform credentials are still returned; they serve tenants that bring
// their own credentials.
func New(cfg Config, publisher Publisher, opts ...Option) ([]notifications.Adapter, error) {
	if cfg.BreakerFailureThreshold > 0 {
		opts = append([]Option{WithBreakers(webhook.NewBreakers(
			cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerRecoveryTimeout,
		))}, opts...)
	}

	emailAdapter, err := NewEmail(cfg.Email, opts...)
	if err != nil {
		return nil, err
	}
	push, err := NewPush(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return []notifications.Adapter{
		NewOnsite(publisher, opts...),
		emailAdapter,
		NewLine(cfg, opts...),
		NewWhatsApp(cfg, opts...),
		NewTelegram(cfg, opts...),
		NewSMS(cfg, opts...),
		push,
	}, nil
}
