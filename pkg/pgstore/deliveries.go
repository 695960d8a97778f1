package pgstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const deliveryColumns = `id, notification_id, tenant_id, recipient_id, channel, status, priority,
	provider_message_id, delivered_at, read_at, error, attempts, locked_until, created_at, updated_at`

func scanDelivery(row pgx.Row) (notifications.DeliveryStatus, error) {
	var d notifications.DeliveryStatus
	err := row.Scan(
		&d.ID, &d.NotificationID, &d.TenantID, &d.RecipientID, &d.Channel, &d.Status, &d.Priority,
		&d.ProviderMessageID, &d.DeliveredAt, &d.ReadAt, &d.Error, &d.Attempts, &d.LockedUntil, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func collectDeliveries(rows pgx.Rows) ([]notifications.DeliveryStatus, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.DeliveryStatus, error) {
		return scanDelivery(row)
	})
}

func (s *Store) CreateDelivery(ctx context.Context, d notifications.DeliveryStatus) error {
	_, err := s.db.Exec(ctx, `INSERT INTO notification_deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.NotificationID, d.TenantID, d.RecipientID, d.Channel, d.Status, d.Priority,
		d.ProviderMessageID, d.DeliveredAt, d.ReadAt, d.Error, d.Attempts, d.LockedUntil, d.CreatedAt, d.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return notifications.ErrDeliveryExists
	}
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (s *Store) getDelivery(ctx context.Context, where string, args ...any) (notifications.DeliveryStatus, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM notification_deliveries WHERE `+where, args...))
	if pg.IsNotFoundError(err) {
		return notifications.DeliveryStatus{}, notifications.ErrDeliveryNotFound
	}
	if err != nil {
		return notifications.DeliveryStatus{}, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func (s *Store) GetDelivery(ctx context.Context, id string) (notifications.DeliveryStatus, error) {
	return s.getDelivery(ctx, "id = $1", id)
}

func (s *Store) FindDelivery(ctx context.Context, notificationID string, ch notifications.Channel) (notifications.DeliveryStatus, error) {
	return s.getDelivery(ctx, "notification_id = $1 AND channel = $2", notificationID, ch)
}

func (s *Store) FindDeliveryByProviderID(ctx context.Context, ch notifications.Channel, providerMessageID string) (notifications.DeliveryStatus, error) {
	if providerMessageID == "" {
		return notifications.DeliveryStatus{}, notifications.ErrDeliveryNotFound
	}
	return s.getDelivery(ctx, "channel = $1 AND provider_message_id = $2 ORDER BY created_at DESC LIMIT 1", ch, providerMessageID)
}

func (s *Store) ListDeliveries(ctx context.Context, notificationID string) ([]notifications.DeliveryStatus, error) {
	rows, err := s.db.Query(ctx, `SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE notification_id = $1 ORDER BY channel`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	out, err := collectDeliveries(rows)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d notifications.DeliveryStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE notification_deliveries
		SET status = $2, provider_message_id = $3, delivered_at = $4, read_at = $5, error = $6,
			attempts = $7, locked_until = $8, updated_at = $9
		WHERE id = $1`,
		d.ID, d.Status, d.ProviderMessageID, d.DeliveredAt, d.ReadAt, d.Error, d.Attempts, d.LockedUntil, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrDeliveryNotFound
	}
	return nil
}

// ClaimDeliveries leases rows with SKIP LOCKED so concurrent sweeps on
// several instances never claim the same row.
func (s *Store) ClaimDeliveries(ctx context.Context, opts notifications.ClaimOptions) ([]notifications.DeliveryStatus, error) {
	excluded := make([]string, len(opts.ExcludeChannels))
	for i, ch := range opts.ExcludeChannels {
		excluded[i] = string(ch)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `UPDATE notification_deliveries SET locked_until = $1
		WHERE id IN (
			SELECT id FROM notification_deliveries
			WHERE status IN ('pending', 'failed')
				AND ($2 = 0 OR attempts < $2)
				AND (locked_until IS NULL OR locked_until <= $3)
				AND ($4 = '' OR notification_id = $4)
				AND ($5 = '' OR tenant_id = $5)
				AND NOT (channel = ANY($6))
			ORDER BY priority DESC, created_at, id
			LIMIT $7
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+deliveryColumns,
		opts.LeaseUntil, opts.MaxAttempts, opts.Now, opts.NotificationID, opts.TenantID, excluded, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	out, err := collectDeliveries(rows)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	// RETURNING does not keep the subquery order.
	slices.SortFunc(out, func(a, b notifications.DeliveryStatus) int {
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
