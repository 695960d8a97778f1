package pgstore

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

func (s *Store) Contact(ctx context.Context, userID string) (notifications.Contact, error) {
	var c notifications.Contact
	err := s.db.QueryRow(ctx, `SELECT user_id, name, email, phone, line_user_id, telegram_chat_id,
			whatsapp_number, push_tokens, locale
		FROM contacts WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.Name, &c.Email, &c.Phone, &c.LineUserID, &c.TelegramChatID, &c.WhatsAppNumber, &c.PushTokens, &c.Locale)
	if pg.IsNotFoundError(err) {
		return notifications.Contact{}, notifications.ErrContactNotFound
	}
	if err != nil {
		return notifications.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// SaveContact inserts or replaces a user's delivery addresses.
func (s *Store) SaveContact(ctx context.Context, c notifications.Contact) error {
	tokens := c.PushTokens
	if tokens == nil {
		tokens = []string{}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO contacts (user_id, name, email, phone, line_user_id, telegram_chat_id,
			whatsapp_number, push_tokens, locale, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			line_user_id = EXCLUDED.line_user_id, telegram_chat_id = EXCLUDED.telegram_chat_id,
			whatsapp_number = EXCLUDED.whatsapp_number, push_tokens = EXCLUDED.push_tokens,
			locale = EXCLUDED.locale, updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Name, c.Email, c.Phone, c.LineUserID, c.TelegramChatID, c.WhatsAppNumber, tokens, c.Locale, s.now(),
	)
	if err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

// ChannelConfig loads and decrypts a tenant's channel configuration.
func (s *Store) ChannelConfig(ctx context.Context, tenantID string, ch notifications.Channel) (notifications.ChannelConfig, error) {
	cfg := notifications.ChannelConfig{TenantID: tenantID, Channel: ch}
	var sealed map[string]string
	err := s.db.QueryRow(ctx, `SELECT enabled, credentials, settings FROM channel_configs
		WHERE tenant_id = $1 AND channel = $2`, tenantID, ch,
	).Scan(&cfg.Enabled, &sealed, &cfg.Settings)
	if pg.IsNotFoundError(err) {
		return notifications.ChannelConfig{}, notifications.ErrChannelConfigNotFound
	}
	if err != nil {
		return notifications.ChannelConfig{}, fmt.Errorf("get channel config: %w", err)
	}
	if len(sealed) == 0 {
		return cfg, nil
	}
	if s.cipher == nil {
		return notifications.ChannelConfig{}, ErrCipherRequired
	}
	cfg.Credentials, err = s.cipher.DecryptMap(tenantID, sealed)
	if err != nil {
		return notifications.ChannelConfig{}, fmt.Errorf("decrypt %s credentials: %w", ch, err)
	}
	return cfg, nil
}

// SaveChannelConfig encrypts the credentials and upserts the configuration.
func (s *Store) SaveChannelConfig(ctx context.Context, cfg notifications.ChannelConfig) error {
	if cfg.TenantID == "" || !cfg.Channel.Valid() {
		return errors.Join(notifications.ErrInvalidChannelConfig, fmt.Errorf("tenant %q channel %q", cfg.TenantID, cfg.Channel))
	}
	sealed := map[string]string{}
	if len(cfg.Credentials) > 0 {
		if s.cipher == nil {
			return ErrCipherRequired
		}
		var err error
		if sealed, err = s.cipher.EncryptMap(cfg.TenantID, cfg.Credentials); err != nil {
			return fmt.Errorf("encrypt %s credentials: %w", cfg.Channel, err)
		}
	}
	settings := maps.Clone(cfg.Settings)
	if settings == nil {
		settings = map[string]string{}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO channel_configs (tenant_id, channel, enabled, credentials, settings, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, channel) DO UPDATE SET
			enabled = EXCLUDED.enabled, credentials = EXCLUDED.credentials,
			settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at`,
		cfg.TenantID, cfg.Channel, cfg.Enabled, sealed, settings, s.now(),
	)
	if err != nil {
		return fmt.Errorf("save channel config: %w", err)
	}
	return nil
}
