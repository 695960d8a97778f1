package pgstore

import (
	"context"
	"embed"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notifykit/pkg/events"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
	"github.com/dmitrymomot/notifykit/pkg/reminders"
	"github.com/dmitrymomot/notifykit/pkg/secrets"
	"github.com/dmitrymomot/notifykit/pkg/settings"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

var (
	_ notifications.Storage      = (*Store)(nil)
	_ notifications.ContactStore = (*Store)(nil)
	_ preferences.Store          = (*Store)(nil)
	_ templates.Store            = (*Store)(nil)
	_ reminders.Store            = (*Store)(nil)
	_ events.ReservationSaver    = (*Store)(nil)
	_ settings.Provider          = (*Settings)(nil)
)

// Migrations holds the goose migrations for every table the store uses.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations to pass to pg.Migrate.
const MigrationsDir = "migrations"

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements the notification, preference, template, reminder and
// settings stores on PostgreSQL.
type Store struct {
	db     DB
	cipher *secrets.Cipher
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Store)

// WithCipher encrypts channel credentials at rest. Without it, channel
// configs carrying credentials cannot be saved or loaded.
func WithCipher(c *secrets.Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
