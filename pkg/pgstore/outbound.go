package pgstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const outboundColumns = `id, notification_id, tenant_id, recipient_id, channel, priority, status,
	attempts, max_attempts, last_error, locked_until, scheduled_at, created_at, updated_at`

func scanOutbound(row pgx.Row) (notifications.OutboundMessage, error) {
	var m notifications.OutboundMessage
	err := row.Scan(
		&m.ID, &m.NotificationID, &m.TenantID, &m.RecipientID, &m.Channel, &m.Priority, &m.Status,
		&m.Attempts, &m.MaxAttempts, &m.LastError, &m.LockedUntil, &m.ScheduledAt, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (s *Store) EnqueueOutbound(ctx context.Context, m notifications.OutboundMessage) error {
	_, err := s.db.Exec(ctx, `INSERT INTO outbound_messages (`+outboundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.NotificationID, m.TenantID, m.RecipientID, m.Channel, m.Priority, m.Status,
		m.Attempts, m.MaxAttempts, m.LastError, m.LockedUntil, m.ScheduledAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbound: %w", err)
	}
	return nil
}

func (s *Store) ClaimOutbound(ctx context.Context, opts notifications.ClaimOptions) ([]notifications.OutboundMessage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `UPDATE outbound_messages
		SET locked_until = $1, status = 'processing', updated_at = $3
		WHERE id IN (
			SELECT id FROM outbound_messages
			WHERE status IN ('pending', 'failed')
				AND (max_attempts = 0 OR attempts < max_attempts)
				AND ($2 = 0 OR attempts < $2)
				AND scheduled_at <= $3
				AND (locked_until IS NULL OR locked_until <= $3)
				AND ($4 = '' OR notification_id = $4)
				AND ($5 = '' OR tenant_id = $5)
			ORDER BY priority DESC, created_at, id
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+outboundColumns,
		opts.LeaseUntil, opts.MaxAttempts, opts.Now, opts.NotificationID, opts.TenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim outbound: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.OutboundMessage, error) {
		return scanOutbound(row)
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbound: %w", err)
	}
	slices.SortFunc(out, func(a, b notifications.OutboundMessage) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateOutbound(ctx context.Context, m notifications.OutboundMessage) error {
	tag, err := s.db.Exec(ctx, `UPDATE outbound_messages
		SET status = $2, attempts = $3, last_error = $4, locked_until = $5, scheduled_at = $6, updated_at = $7
		WHERE id = $1`,
		m.ID, m.Status, m.Attempts, m.LastError, m.LockedUntil, m.ScheduledAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update outbound: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrOutboundNotFound
	}
	return nil
}
