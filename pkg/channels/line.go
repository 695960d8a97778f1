package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	lineMaxMessages = 5
	lineMaxText     = 5000
)

// Line sends push messages through the LINE Messaging API.
type Line struct {
	token  string
	apiURL string
	deps
}

func NewLine(cfg Config, opts ...Option) *Line {
	return &Line{
		token:  cfg.LineChannelAccessToken,
		apiURL: strings.TrimRight(cfg.LineAPIURL, "/"),
		deps:   newDeps(opts),
	}
}

func (l *Line) Channel() notifications.Channel { return notifications.ChannelLine }

type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePushResponse struct {
	SentMessages []struct {
		ID string `json:"id"`
	} `json:"sentMessages"`
}

func (l *Line) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	token := credential(cfg, CredLineChannelAccessToken, l.token)
	if token == "" {
		return failed(fmt.Errorf("%w: %s", ErrMissingCredential, CredLineChannelAccessToken))
	}
	c, err := l.contact(ctx, n.RecipientID)
	if err != nil {
		return failed(err)
	}
	if c.LineUserID == "" {
		return failed(fmt.Errorf("%w: no LINE user id for user %s", notifications.ErrMissingRecipient, n.RecipientID))
	}

	parts := split(composeText(n), lineMaxText, lineMaxMessages)
	req := linePushRequest{To: c.LineUserID, Messages: make([]lineMessage, 0, len(parts))}
	for _, p := range parts {
		req.Messages = append(req.Messages, lineMessage{Type: "text", Text: p})
	}

	resp, err := l.client.PostJSON(ctx, l.apiURL+"/v2/bot/message/push", req,
		webhook.WithBearerToken(token),
		// Same notification, same key: LINE drops the duplicate on retry.
		webhook.WithHeader("X-Line-Retry-Key", uuid.NewSHA1(uuid.NameSpaceURL, []byte("line:"+n.ID)).String()),
		l.breaker(notifications.ChannelLine),
	)
	if err != nil {
		return failed(fmt.Errorf("line push: %w", err))
	}

	var body linePushResponse
	if err := resp.DecodeJSON(&body); err == nil && len(body.SentMessages) > 0 {
		return sent(body.SentMessages[0].ID)
	}
	return sent(resp.Header.Get("X-Line-Request-Id"))
}

func (l *Line) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	if credential(cfg, CredLineChannelAccessToken, l.token) == "" {
		return notifications.Invalid(CredLineChannelAccessToken + " is required")
	}
	return notifications.Valid()
}

// DeliveryStatus is not offered by the Messaging API.
func (l *Line) DeliveryStatus(context.Context, string) (notifications.DeliveryState, error) {
	return "", notifications.ErrStatusUnavailable
}

func (l *Line) IsEnabled(context.Context, string) bool { return l.token != "" }
