// Package pg connects to PostgreSQL with pgx/v5 and applies goose
// migrations from an embedded filesystem.
//
//	pool, err := pg.Connect(ctx, cfg)
//	err = pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log)
//
// Healthcheck adapts the pool to a readiness check. IsNotFoundError and
// IsDuplicateKeyError classify driver errors for the stores.
package pg
