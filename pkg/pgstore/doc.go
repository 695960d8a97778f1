// Package pgstore is the PostgreSQL datastore of the notification service.
//
// A single Store implements notifications.Storage, notifications.ContactStore,
// preferences.Store, templates.Store and reminders.Store; Store.Settings
// returns a settings.Provider. Queue claims use FOR UPDATE SKIP LOCKED, and
// the unique indexes on (notification_id, channel) and on reminder
// reservation ids turn duplicate inserts into ErrDeliveryExists and
// ErrReminderExists. Channel credentials are encrypted with a
// secrets.Cipher before they are written.
//
// The schema ships as goose migrations in Migrations:
//
//	err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log)
//	store := pgstore.New(pool, pgstore.WithCipher(cipher))
package pgstore
