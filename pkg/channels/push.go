package channels

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	fcmScope     = "https://www.googleapis.com/auth/firebase.messaging"
	pushMaxTitle = 100
	pushMaxBody  = 1000
)

// Push sends to every registered device token through FCM HTTP v1.
type Push struct {
	projectID string
	apiURL    string
	platform  oauth2.TokenSource

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
	deps
}

// NewPush creates the push adapter. A malformed platform service account
// is a configuration error.
func NewPush(cfg Config, opts ...Option) (*Push, error) {
	p := &Push{
		projectID: cfg.FCMProjectID,
		apiURL:    strings.TrimRight(cfg.FCMAPIURL, "/"),
		sources:   make(map[string]oauth2.TokenSource),
		deps:      newDeps(opts),
	}
	if cfg.FCMCredentialsJSON != "" {
		ts, err := p.serviceAccount(cfg.FCMCredentialsJSON)
		if err != nil {
			return nil, err
		}
		p.platform = ts
	}
	return p, nil
}

// WithTokenSource replaces the platform token source and returns p.
func (p *Push) WithTokenSource(ts oauth2.TokenSource) *Push {
	p.platform = ts
	return p
}

func (p *Push) Channel() notifications.Channel { return notifications.ChannelPush }

// serviceAccount returns a cached, self-refreshing token source for a
// service account key.
func (p *Push) serviceAccount(raw string) (oauth2.TokenSource, error) {
	sum := sha256.Sum256([]byte(raw))
	key := hex.EncodeToString(sum[:])

	p.mu.Lock()
	defer p.mu.Unlock()
	if ts, ok := p.sources[key]; ok {
		return ts, nil
	}
	jwtCfg, err := google.JWTConfigFromJSON([]byte(raw), fcmScope)
	if err != nil {
		return nil, fmt.Errorf("%w: fcm service account: %v", ErrMissingCredential, err)
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.httpClient)
	ts := oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(ctx))
	p.sources[key] = ts
	return ts, nil
}

func (p *Push) tokenSource(cfg notifications.ChannelConfig) (oauth2.TokenSource, error) {
	if tok := cfg.Credential(CredFCMAccessToken); tok != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}), nil
	}
	if raw := cfg.Credential(CredFCMCredentialsJSON); raw != "" {
		return p.serviceAccount(raw)
	}
	if p.platform == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, CredFCMCredentialsJSON)
	}
	return p.platform, nil
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Name string `json:"name"`
}

func (p *Push) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	project := credential(cfg, CredFCMProjectID, p.projectID)
	if project == "" {
		return failed(fmt.Errorf("%w: %s", ErrMissingCredential, CredFCMProjectID))
	}
	ts, err := p.tokenSource(cfg)
	if err != nil {
		return failed(err)
	}
	c, err := p.contact(ctx, n.RecipientID)
	if err != nil {
		return failed(err)
	}
	if len(c.PushTokens) == 0 {
		return failed(fmt.Errorf("%w: no push tokens for user %s", notifications.ErrMissingRecipient, n.RecipientID))
	}
	tok, err := ts.Token()
	if err != nil {
		return failed(fmt.Errorf("fcm token: %w", err))
	}

	data := map[string]string{"notification_id": n.ID, "kind": string(n.Kind)}
	if n.URL != "" {
		data["url"] = n.URL
	}
	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", p.apiURL, project)

	var (
		firstID string
		errs    []error
	)
	for _, device := range c.PushTokens {
		req := fcmRequest{Message: fcmMessage{
			Token: device,
			Notification: fcmNotification{
				Title: truncate(n.Subject, pushMaxTitle),
				Body:  truncate(n.PlainText(), pushMaxBody),
			},
			Data: data,
		}}
		resp, err := p.client.PostJSON(ctx, endpoint, req,
			webhook.WithBearerToken(tok.AccessToken),
			p.breaker(notifications.ChannelPush),
		)
		if err != nil {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "push to device failed",
				logger.NotificationID(n.ID),
				logger.UserID(n.RecipientID),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		var body fcmResponse
		if err := resp.DecodeJSON(&body); err == nil && firstID == "" {
			firstID = body.Name
		}
	}
	if len(errs) == len(c.PushTokens) {
		return failed(fmt.Errorf("fcm send: %w", errors.Join(errs...)))
	}
	return sent(firstID)
}

func (p *Push) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	var errs []string
	if credential(cfg, CredFCMProjectID, p.projectID) == "" {
		errs = append(errs, CredFCMProjectID+" is required")
	}
	if raw := cfg.Credential(CredFCMCredentialsJSON); raw != "" {
		if _, err := google.JWTConfigFromJSON([]byte(raw), fcmScope); err != nil {
			errs = append(errs, CredFCMCredentialsJSON+" is not a valid service account key")
		}
	} else if cfg.Credential(CredFCMAccessToken) == "" && p.platform == nil {
		errs = append(errs, CredFCMCredentialsJSON+" is required")
	}
	if len(errs) > 0 {
		return notifications.Invalid(errs...)
	}
	return notifications.Valid()
}

// DeliveryStatus is not reported by FCM.
func (p *Push) DeliveryStatus(context.Context, string) (notifications.DeliveryState, error) {
	return "", notifications.ErrStatusUnavailable
}

func (p *Push) IsEnabled(context.Context, string) bool {
	return p.projectID != "" && p.platform != nil
}
