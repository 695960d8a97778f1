package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Email sends through the platform mailer or, when a tenant configures its
// own provider, through a sender built from the tenant's credentials.
type Email struct {
	base     email.Config
	platform email.Sender
	deps
}

// NewEmail creates the email adapter. Without platform credentials the
// adapter only serves tenants that bring their own.
func NewEmail(cfg email.Config, opts ...Option) (*Email, error) {
	e := &Email{base: cfg, deps: newDeps(opts)}
	if hasPlatformMailer(cfg) {
		s, err := email.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("platform mailer: %w", err)
		}
		e.platform = s
	}
	return e, nil
}

func hasPlatformMailer(cfg email.Config) bool {
	switch cfg.Provider {
	case email.ProviderDev:
		return true
	case email.ProviderSMTP:
		return cfg.SMTPHost != ""
	default:
		return cfg.PostmarkServerToken != ""
	}
}

// WithSender replaces the platform sender and returns e.
func (e *Email) WithSender(s email.Sender) *Email {
	e.platform = s
	return e
}

func (e *Email) Channel() notifications.Channel { return notifications.ChannelEmail }

// ProviderBatching routes email through the outbound queue.
func (e *Email) ProviderBatching() bool { return true }

func (e *Email) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	c, err := e.contact(ctx, n.RecipientID)
	if err != nil {
		return failed(err)
	}
	if c.Email == "" {
		return failed(fmt.Errorf("%w: no email address for user %s", notifications.ErrMissingRecipient, n.RecipientID))
	}

	sender, err := e.sender(cfg)
	if err != nil {
		return failed(err)
	}

	res, err := sender.Send(ctx, email.Message{
		To:       c.Email,
		Subject:  n.Subject,
		HTMLBody: n.Body,
		TextBody: n.TextBody,
		Tag:      string(n.Kind),
		Metadata: map[string]string{"notification_id": n.ID},
	})
	if err != nil {
		return failed(err)
	}
	return sent(res.MessageID)
}

func (e *Email) sender(cfg notifications.ChannelConfig) (email.Sender, error) {
	if len(cfg.Credentials) > 0 {
		return email.FromCredentials(cfg.Credentials, e.base)
	}
	if e.platform == nil {
		return nil, fmt.Errorf("%w: no platform mailer configured", ErrMissingCredential)
	}
	return e.platform, nil
}

func (e *Email) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	if len(cfg.Credentials) == 0 {
		if e.platform == nil {
			return notifications.Invalid("email credentials are required")
		}
		return notifications.Valid()
	}
	if _, err := email.FromCredentials(cfg.Credentials, e.base); err != nil {
		return notifications.Invalid(err.Error())
	}
	return notifications.Valid()
}

func (e *Email) DeliveryStatus(ctx context.Context, providerMessageID string) (notifications.DeliveryState, error) {
	checker, ok := e.platform.(email.StatusChecker)
	if !ok {
		return "", notifications.ErrStatusUnavailable
	}
	st, err := checker.Status(ctx, providerMessageID)
	if errors.Is(err, email.ErrStatusUnavailable) {
		return "", notifications.ErrStatusUnavailable
	}
	if err != nil {
		return "", err
	}
	switch st {
	case email.StatusDelivered:
		return notifications.StateDelivered, nil
	case email.StatusBounced:
		return notifications.StateBounced, nil
	case email.StatusSent:
		return notifications.StateSent, nil
	default:
		return notifications.StatePending, nil
	}
}

func (e *Email) IsEnabled(context.Context, string) bool { return e.platform != nil }
