package pgstore

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

func (s *Store) GetPreference(ctx context.Context, userID, tenantID string) (preferences.Preference, error) {
	p := preferences.Preference{UserID: userID, TenantID: tenantID}
	err := s.db.QueryRow(ctx, `SELECT channels, kinds, digest_frequency, updated_at
		FROM notification_preferences WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID,
	).Scan(&p.Channels, &p.Kinds, &p.DigestFrequency, &p.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return preferences.Preference{}, preferences.ErrPreferenceNotFound
	}
	if err != nil {
		return preferences.Preference{}, fmt.Errorf("get preference: %w", err)
	}
	if p.Channels == nil {
		p.Channels = map[notifications.Channel]bool{}
	}
	if p.Kinds == nil {
		p.Kinds = map[notifications.Kind]bool{}
	}
	return p, nil
}

func (s *Store) SavePreference(ctx context.Context, p preferences.Preference) error {
	channels, kinds := p.Channels, p.Kinds
	if channels == nil {
		channels = map[notifications.Channel]bool{}
	}
	if kinds == nil {
		kinds = map[notifications.Kind]bool{}
	}
	digest := p.DigestFrequency
	if digest == "" {
		digest = preferences.DigestImmediate
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO notification_preferences (user_id, tenant_id, channels, kinds, digest_frequency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET
			channels = EXCLUDED.channels, kinds = EXCLUDED.kinds,
			digest_frequency = EXCLUDED.digest_frequency, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.TenantID, channels, kinds, digest, updated,
	)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, userID, tenantID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notification_preferences WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return preferences.ErrPreferenceNotFound
	}
	return nil
}
