package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const notificationColumns = `id, tenant_id, sender_id, recipient_id, subject, body, text_body, kind, url,
	priority, metadata, read, read_at, deleted_by_sender, deleted_by_recipient, created_at, updated_at`

func scanNotification(row pgx.Row) (notifications.Notification, error) {
	var n notifications.Notification
	err := row.Scan(
		&n.ID, &n.TenantID, &n.SenderID, &n.RecipientID, &n.Subject, &n.Body, &n.TextBody, &n.Kind, &n.URL,
		&n.Priority, &n.Metadata, &n.Read, &n.ReadAt, &n.DeletedBySender, &n.DeletedByRecipient, &n.CreatedAt, &n.UpdatedAt,
	)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, n notifications.Notification) error {
	if n.ID == "" || n.RecipientID == "" {
		return notifications.ErrInvalidRequest
	}
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		n.ID, n.TenantID, n.SenderID, n.RecipientID, n.Subject, n.Body, n.TextBody, n.Kind, n.URL,
		n.Priority, metadata, n.Read, n.ReadAt, n.DeletedBySender, n.DeletedByRecipient, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notifications.Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return notifications.Notification{}, notifications.ErrNotificationNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, opts notifications.ListOptions) ([]notifications.Notification, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Sent {
		where = append(where, "sender_id = "+arg(opts.UserID), "NOT deleted_by_sender")
	} else {
		where = append(where, "recipient_id = "+arg(opts.UserID), "NOT deleted_by_recipient")
	}
	if opts.TenantID != "" {
		where = append(where, "tenant_id = "+arg(opts.TenantID))
	}
	if opts.OnlyUnread {
		where = append(where, "NOT read")
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = string(k)
		}
		where = append(where, "kind = ANY("+arg(kinds)+")")
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Notification, error) {
		return scanNotification(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Store) CountUnread(ctx context.Context, userID, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM notifications
		WHERE recipient_id = $1 AND NOT read AND NOT deleted_by_recipient AND ($2 = '' OR tenant_id = $2)`,
		userID, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $2), updated_at = CASE WHEN read THEN updated_at ELSE $2 END
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

func (s *Store) MarkNotificationDeleted(ctx context.Context, id string, bySender, byRecipient bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications
		SET deleted_by_sender = deleted_by_sender OR $2,
			deleted_by_recipient = deleted_by_recipient OR $3,
			updated_at = $4
		WHERE id = $1`, id, bySender, byRecipient, s.now())
	if err != nil {
		return fmt.Errorf("mark notification deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}
