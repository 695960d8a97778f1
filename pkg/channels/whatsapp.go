package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const whatsAppMaxText = 4096

// WhatsApp sends through the WhatsApp Business Cloud API.
type WhatsApp struct {
	token         string
	phoneNumberID string
	apiURL        string
	deps
}

func NewWhatsApp(cfg Config, opts ...Option) *WhatsApp {
	return &WhatsApp{
		token:         cfg.WhatsAppAccessToken,
		phoneNumberID: cfg.WhatsAppPhoneNumberID,
		apiURL:        strings.TrimRight(cfg.WhatsAppAPIURL, "/"),
		deps:          newDeps(opts),
	}
}

func (w *WhatsApp) Channel() notifications.Channel { return notifications.ChannelWhatsApp }

type whatsAppRequest struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Text             *whatsAppText     `json:"text,omitempty"`
	Template         *whatsAppTemplate `json:"template,omitempty"`
}

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppTemplate struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// e164Digits converts an E.164 number to its digits-only form.
func e164Digits(raw string) (string, error) {
	n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	n = strings.TrimPrefix(n, "+")
	if len(n) < 8 || len(n) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
		}
	}
	return n, nil
}

func (w *WhatsApp) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	token := credential(cfg, CredWhatsAppAccessToken, w.token)
	phoneID := credential(cfg, CredWhatsAppPhoneNumberID, w.phoneNumberID)
	if token == "" || phoneID == "" {
		return failed(fmt.Errorf("%w: %s and %s", ErrMissingCredential, CredWhatsAppAccessToken, CredWhatsAppPhoneNumberID))
	}
	c, err := w.contact(ctx, n.RecipientID)
	if err != nil {
		return failed(err)
	}
	raw := c.WhatsAppNumber
	if raw == "" {
		raw = c.Phone
	}
	if raw == "" {
		return failed(fmt.Errorf("%w: no WhatsApp number for user %s", notifications.ErrMissingRecipient, n.RecipientID))
	}
	to, err := e164Digits(raw)
	if err != nil {
		return failed(err)
	}

	req := whatsAppRequest{MessagingProduct: "whatsapp", RecipientType: "individual", To: to}
	if name := n.Metadata[MetaWhatsAppTemplate]; name != "" {
		// Business-initiated conversations outside the 24h window need a template.
		t := &whatsAppTemplate{Name: name}
		t.Language.Code = n.Metadata[MetaWhatsAppLanguage]
		if t.Language.Code == "" {
			t.Language.Code = "en"
		}
		req.Type = "template"
		req.Template = t
	} else {
		req.Type = "text"
		req.Text = &whatsAppText{PreviewURL: n.URL != "", Body: truncate(composeText(n), whatsAppMaxText)}
	}

	resp, err := w.client.PostJSON(ctx, fmt.Sprintf("%s/%s/messages", w.apiURL, phoneID), req,
		webhook.WithBearerToken(token),
		w.breaker(notifications.ChannelWhatsApp),
	)
	if err != nil {
		return failed(fmt.Errorf("whatsapp send: %w", err))
	}
	var body whatsAppResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return failed(err)
	}
	if len(body.Messages) == 0 {
		return failed(fmt.Errorf("%w: no message id returned", ErrProviderRejected))
	}
	return sent(body.Messages[0].ID)
}

func (w *WhatsApp) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	var errs []string
	if credential(cfg, CredWhatsAppAccessToken, w.token) == "" {
		errs = append(errs, CredWhatsAppAccessToken+" is required")
	}
	if credential(cfg, CredWhatsAppPhoneNumberID, w.phoneNumberID) == "" {
		errs = append(errs, CredWhatsAppPhoneNumberID+" is required")
	}
	if len(errs) > 0 {
		return notifications.Invalid(errs...)
	}
	return notifications.Valid()
}

// DeliveryStatus arrives through status webhooks only.
func (w *WhatsApp) DeliveryStatus(context.Context, string) (notifications.DeliveryState, error) {
	return "", notifications.ErrStatusUnavailable
}

func (w *WhatsApp) IsEnabled(context.Context, string) bool {
	return w.token != "" && w.phoneNumberID != ""
}
