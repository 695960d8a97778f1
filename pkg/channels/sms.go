package channels

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const smsMaxText = 1600

// SMS sends through a Twilio compatible messages API.
type SMS struct {
	accountSID string
	authToken  string
	from       string
	apiURL     string
	deps
}

func NewSMS(cfg Config, opts ...Option) *SMS {
	return &SMS{
		accountSID: cfg.SMSAccountSID,
		authToken:  cfg.SMSAuthToken,
		from:       cfg.SMSFrom,
		apiURL:     strings.TrimRight(cfg.SMSAPIURL, "/"),
		deps:       newDeps(opts),
	}
}

func (s *SMS) Channel() notifications.Channel { return notifications.ChannelSMS }

type smsMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// smsText drops the subject; SMS bodies carry the text and the link only.
func smsText(n notifications.Notification) string {
	text := strings.TrimSpace(n.PlainText())
	if n.URL != "" {
		text = strings.TrimSpace(text + "\n" + n.URL)
	}
	return truncate(text, smsMaxText)
}

func (s *SMS) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	sid := credential(cfg, CredSMSAccountSID, s.accountSID)
	token := credential(cfg, CredSMSAuthToken, s.authToken)
	from := credential(cfg, CredSMSFrom, s.from)
	if sid == "" || token == "" || from == "" {
		return failed(fmt.Errorf("%w: %s, %s and %s", ErrMissingCredential, CredSMSAccountSID, CredSMSAuthToken, CredSMSFrom))
	}
	c, err := s.contact(ctx, n.RecipientID)
	if err != nil {
		return failed(err)
	}
	if c.Phone == "" {
		return failed(fmt.Errorf("%w: no phone number for user %s", notifications.ErrMissingRecipient, n.RecipientID))
	}
	to, err := e164Digits(c.Phone)
	if err != nil {
		return failed(err)
	}

	form := url.Values{}
	form.Set("To", "+"+to)
	form.Set("From", from)
	form.Set("Body", smsText(n))

	resp, err := s.client.PostForm(ctx, fmt.Sprintf("%s/Accounts/%s/Messages.json", s.apiURL, url.PathEscape(sid)), form,
		webhook.WithBasicAuth(sid, token),
		s.breaker(notifications.ChannelSMS),
	)
	if err != nil {
		return failed(fmt.Errorf("sms send: %w", err))
	}
	var msg smsMessage
	if err := resp.DecodeJSON(&msg); err != nil {
		return failed(err)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		return failed(fmt.Errorf("%w: %s", ErrProviderRejected, msg.ErrorMessage))
	}
	return sent(msg.SID)
}

func (s *SMS) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	var errs []string
	for key, fallback := range map[string]string{
		CredSMSAccountSID: s.accountSID,
		CredSMSAuthToken:  s.authToken,
		CredSMSFrom:       s.from,
	} {
		if credential(cfg, key, fallback) == "" {
			errs = append(errs, key+" is required")
		}
	}
	if len(errs) > 0 {
		return notifications.Invalid(errs...)
	}
	return notifications.Valid()
}

// DeliveryStatus polls the message resource with platform credentials.
func (s *SMS) DeliveryStatus(ctx context.Context, providerMessageID string) (notifications.DeliveryState, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", notifications.ErrStatusUnavailable
	}
	resp, err := s.client.Get(ctx,
		fmt.Sprintf("%s/Accounts/%s/Messages/%s.json", s.apiURL, url.PathEscape(s.accountSID), url.PathEscape(providerMessageID)),
		webhook.WithBasicAuth(s.accountSID, s.authToken),
		s.breaker(notifications.ChannelSMS),
	)
	if err != nil {
		return "", fmt.Errorf("sms status: %w", err)
	}
	var msg smsMessage
	if err := resp.DecodeJSON(&msg); err != nil {
		return "", err
	}
	return smsState(msg.Status), nil
}

func smsState(status string) notifications.DeliveryState {
	switch status {
	case "delivered":
		return notifications.StateDelivered
	case "sent":
		return notifications.StateSent
	case "failed":
		return notifications.StateFailed
	case "undelivered":
		return notifications.StateBounced
	default:
		return notifications.StatePending
	}
}

func (s *SMS) IsEnabled(context.Context, string) bool {
	return s.accountSID != "" && s.authToken != "" && s.from != ""
}
