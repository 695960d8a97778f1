package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"
)

// PostmarkSender delivers through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed sender. The account token is
// optional; only the server token is needed to send.
func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if err := validateSender(cfg.SenderEmail); err != nil {
		return nil, err
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// WithBaseURL points the client at another API host, e.g. a test server.
func (c *PostmarkSender) WithBaseURL(url string) *PostmarkSender {
	c.client.BaseURL = url
	return c
}

// Send implements Sender. Opens and HTML link clicks are tracked.
func (c *PostmarkSender) Send(ctx context.Context, msg Message) (Result, error) {
	msg = msg.normalize(c.config)
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:          msg.fromHeader(),
		ReplyTo:       msg.ReplyTo,
		To:            msg.To,
		Subject:       msg.Subject,
		Tag:           msg.Tag,
		HTMLBody:      msg.HTMLBody,
		TextBody:      msg.TextBody,
		Metadata:      msg.Metadata,
		MessageStream: c.config.PostmarkStream,
		TrackOpens:    true,
		TrackLinks:    "HtmlOnly",
	})
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return Result{}, errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return Result{MessageID: resp.MessageID}, nil
}

// Status implements StatusChecker using the outbound message details API.
func (c *PostmarkSender) Status(ctx context.Context, messageID string) (Status, error) {
	msg, err := c.client.GetOutboundMessage(ctx, messageID)
	if err != nil {
		return "", errors.Join(ErrStatusUnavailable, err)
	}
	switch strings.ToLower(msg.Status) {
	case "sent":
		return StatusDelivered, nil
	case "queued":
		return StatusQueued, nil
	case "processed":
		return StatusSent, nil
	case "bounced":
		return StatusBounced, nil
	default:
		return "", fmt.Errorf("%w: unknown postmark status %q", ErrStatusUnavailable, msg.Status)
	}
}
