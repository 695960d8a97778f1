package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	telegramMaxText     = 4096
	telegramMaxMessages = 3
)

// Telegram sends bot messages. Bot clients are created lazily and cached
// per token since construction calls getMe.
type Telegram struct {
	token    string
	endpoint string

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
	deps
}

func NewTelegram(cfg Config, opts ...Option) *Telegram {
	endpoint := cfg.TelegramAPIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{
		token:    cfg.TelegramBotToken,
		endpoint: endpoint,
		bots:     make(map[string]*tgbotapi.BotAPI),
		deps:     newDeps(opts),
	}
}

func (t *Telegram) Channel() notifications.Channel { return notifications.ChannelTelegram }

func (t *Telegram) bot(token string) (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bots[token]; ok {
		return b, nil
	}
	b, err := tgbotapi.NewBotAPIWithClient(token, t.endpoint, t.httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bots[token] = b
	return b, nil
}

func (t *Telegram) Send(ctx context.Context, n notifications.Notification, cfg notifications.ChannelConfig) (notifications.SendResult, error) {
	token := credential(cfg, CredTelegramBotToken, t.token)
	if token == "" {
		return failed(fmt.Errorf("%w: %s", ErrMissingCredential, CredTelegramBotToken))
	}
	c, err := t.contact(ctx, n.RecipientID)
	if err != nil {
		return failed(err)
	}
	chat := strings.TrimSpace(c.TelegramChatID)
	if chat == "" {
		return failed(fmt.Errorf("%w: no Telegram chat for user %s", notifications.ErrMissingRecipient, n.RecipientID))
	}

	cb := t.breakers.For(string(notifications.ChannelTelegram))
	if !cb.Allow() {
		return failed(fmt.Errorf("telegram send: %w", webhook.ErrCircuitOpen))
	}
	bot, err := t.bot(token)
	if err != nil {
		cb.RecordFailure()
		return failed(err)
	}

	var first tgbotapi.Message
	for i, part := range split(composeText(n), telegramMaxText, telegramMaxMessages) {
		if err := ctx.Err(); err != nil {
			return failed(err)
		}
		msg, err := newTelegramMessage(chat, part)
		if err != nil {
			return failed(err)
		}
		out, err := bot.Send(msg)
		if err != nil {
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
				cb.RecordSuccess()
				return failed(fmt.Errorf("%w: %s", ErrProviderRejected, apiErr.Message))
			}
			cb.RecordFailure()
			return failed(fmt.Errorf("telegram send: %w", err))
		}
		if i == 0 {
			first = out
		}
	}
	cb.RecordSuccess()
	if first.Chat == nil {
		return sent(strconv.Itoa(first.MessageID))
	}
	return sent(fmt.Sprintf("%d:%d", first.Chat.ID, first.MessageID))
}

func newTelegramMessage(chat, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(chat, "@") {
		return tgbotapi.NewMessageToChannel(chat, text), nil
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("%w: telegram chat %q", ErrInvalidRecipient, chat)
	}
	return tgbotapi.NewMessage(id, text), nil
}

func (t *Telegram) ValidateConfig(cfg notifications.ChannelConfig) notifications.ValidationResult {
	token := credential(cfg, CredTelegramBotToken, t.token)
	if token == "" {
		return notifications.Invalid(CredTelegramBotToken + " is required")
	}
	// Tokens look like "<bot id>:<secret>".
	id, secret, ok := strings.Cut(token, ":")
	if _, err := strconv.ParseInt(id, 10, 64); !ok || err != nil || secret == "" {
		return notifications.Invalid(CredTelegramBotToken + " is malformed")
	}
	return notifications.Valid()
}

func (t *Telegram) DeliveryStatus(context.Context, string) (notifications.DeliveryState, error) {
	return "", notifications.ErrStatusUnavailable
}

func (t *Telegram) IsEnabled(context.Context, string) bool { return t.token != "" }
