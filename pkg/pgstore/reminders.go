package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/reminders"
)

func (s *Store) DueReservations(ctx context.Context, tenantID string, from, to time.Time, statuses []events.Status) ([]events.Reservation, error) {
	states := make([]string, len(statuses))
	for i, st := range statuses {
		states[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `SELECT r.id, r.tenant_id, r.customer_id, r.customer_name, r.resource,
			r.party_size, r.starts_at, r.status
		FROM reservations r
		LEFT JOIN reservation_reminders rr ON rr.reservation_id = r.id
		WHERE r.tenant_id = $1
			AND r.starts_at BETWEEN $2 AND $3
			AND r.status = ANY($4)
			AND rr.reservation_id IS NULL
		ORDER BY r.starts_at, r.id`, tenantID, from, to, states)
	if err != nil {
		return nil, fmt.Errorf("due reservations: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.Reservation, error) {
		var r events.Reservation
		err := row.Scan(&r.ID, &r.TenantID, &r.CustomerID, &r.CustomerName, &r.Resource, &r.PartySize, &r.StartsAt, &r.Status)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("due reservations: %w", err)
	}
	return out, nil
}

// InsertReminder relies on the primary key of reservation_reminders, so two
// instances sweeping the same window store one record.
func (s *Store) InsertReminder(ctx context.Context, r reminders.Record) error {
	_, err := s.db.Exec(ctx, `INSERT INTO reservation_reminders
			(reservation_id, tenant_id, scheduled_at, sent_at, notification_id, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ReservationID, r.TenantID, r.ScheduledAt, r.SentAt, r.NotificationID, r.Status, r.Error,
	)
	if pg.IsDuplicateKeyError(err) {
		return reminders.ErrReminderExists
	}
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// SaveReservation upserts the reservation read model, typically from
// reservation events.
func (s *Store) SaveReservation(ctx context.Context, r events.Reservation) error {
	_, err := s.db.Exec(ctx, `INSERT INTO reservations
			(id, tenant_id, customer_id, customer_name, resource, party_size, starts_at, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id, customer_name = EXCLUDED.customer_name,
			resource = EXCLUDED.resource, party_size = EXCLUDED.party_size,
			starts_at = EXCLUDED.starts_at, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		r.ID, r.TenantID, r.CustomerID, r.CustomerName, r.Resource, r.PartySize, r.StartsAt, r.Status, s.now(),
	)
	if err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}
