package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/settings"
)

// Settings reads system and tenant settings. Wrap it in settings.NewCached.
type Settings struct {
	store    *Store
	fallback settings.System
}

// Settings returns a settings.Provider. fallback is returned while the
// system settings row does not exist.
func (s *Store) Settings(fallback settings.System) *Settings {
	return &Settings{store: s, fallback: fallback.Normalize()}
}

func (p *Settings) System(ctx context.Context) (settings.System, error) {
	var sys settings.System
	err := p.store.db.QueryRow(ctx, `SELECT notifications_enabled, global_rate_limit_per_minute, max_attempts, batch_size
		FROM notification_system_settings WHERE id`,
	).Scan(&sys.NotificationsEnabled, &sys.GlobalRateLimitPerMinute, &sys.MaxAttempts, &sys.BatchSize)
	if pg.IsNotFoundError(err) {
		return p.fallback, nil
	}
	if err != nil {
		return settings.System{}, fmt.Errorf("get system settings: %w", err)
	}
	return sys.Normalize(), nil
}

const tenantColumns = `tenant_id, name, owner_user_id, batch_size, reservations_enabled, reminder_lead_minutes`

func scanTenant(row pgx.Row) (settings.Tenant, error) {
	var (
		t    settings.Tenant
		lead int
	)
	if err := row.Scan(&t.TenantID, &t.Name, &t.OwnerUserID, &t.BatchSize, &t.ReservationsEnabled, &lead); err != nil {
		return settings.Tenant{}, err
	}
	t.ReminderLeadTime = time.Duration(lead) * time.Minute
	return t, nil
}

func (p *Settings) Tenant(ctx context.Context, tenantID string) (settings.Tenant, error) {
	t, err := scanTenant(p.store.db.QueryRow(ctx, `SELECT `+tenantColumns+`
		FROM notification_tenant_settings WHERE tenant_id = $1`, tenantID))
	if pg.IsNotFoundError(err) {
		return settings.Tenant{}, settings.ErrTenantNotFound
	}
	if err != nil {
		return settings.Tenant{}, fmt.Errorf("get tenant settings: %w", err)
	}
	return t, nil
}

func (p *Settings) Tenants(ctx context.Context) ([]settings.Tenant, error) {
	rows, err := p.store.db.Query(ctx, `SELECT `+tenantColumns+` FROM notification_tenant_settings ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenant settings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (settings.Tenant, error) {
		return scanTenant(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list tenant settings: %w", err)
	}
	return out, nil
}

func (p *Settings) SaveSystem(ctx context.Context, sys settings.System) error {
	sys = sys.Normalize()
	_, err := p.store.db.Exec(ctx, `INSERT INTO notification_system_settings
			(id, notifications_enabled, global_rate_limit_per_minute, max_attempts, batch_size)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			notifications_enabled = EXCLUDED.notifications_enabled,
			global_rate_limit_per_minute = EXCLUDED.global_rate_limit_per_minute,
			max_attempts = EXCLUDED.max_attempts, batch_size = EXCLUDED.batch_size`,
		sys.NotificationsEnabled, sys.GlobalRateLimitPerMinute, sys.MaxAttempts, sys.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("save system settings: %w", err)
	}
	return nil
}

func (p *Settings) SaveTenant(ctx context.Context, t settings.Tenant) error {
	_, err := p.store.db.Exec(ctx, `INSERT INTO notification_tenant_settings (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			name = EXCLUDED.name, owner_user_id = EXCLUDED.owner_user_id, batch_size = EXCLUDED.batch_size,
			reservations_enabled = EXCLUDED.reservations_enabled,
			reminder_lead_minutes = EXCLUDED.reminder_lead_minutes`,
		t.TenantID, t.Name, t.OwnerUserID, t.BatchSize, t.ReservationsEnabled, int(t.ReminderLeadTime/time.Minute),
	)
	if err != nil {
		return fmt.Errorf("save tenant settings: %w", err)
	}
	return nil
}
