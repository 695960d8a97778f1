package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

func (s *Store) Template(ctx context.Context, id string) (templates.Template, error) {
	t := templates.Template{ID: id}
	err := s.db.QueryRow(ctx, `SELECT name, description, updated_at FROM notification_templates WHERE id = $1`, id).
		Scan(&t.Name, &t.Description, &t.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return templates.Template{}, templates.ErrTemplateNotFound
	}
	if err != nil {
		return templates.Template{}, fmt.Errorf("get template: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT locale, subject, body, text_body, active
		FROM notification_template_variants WHERE template_id = $1 ORDER BY locale`, id)
	if err != nil {
		return templates.Template{}, fmt.Errorf("get template variants: %w", err)
	}
	t.Variants, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (templates.Variant, error) {
		var v templates.Variant
		err := row.Scan(&v.Locale, &v.Subject, &v.Body, &v.TextBody, &v.Active)
		return v, err
	})
	if err != nil {
		return templates.Template{}, fmt.Errorf("get template variants: %w", err)
	}
	return t, nil
}

// SaveTemplate validates t and replaces the stored template and all of its
// variants in one transaction.
func (s *Store) SaveTemplate(ctx context.Context, t templates.Template) error {
	t, err := t.Normalize()
	if err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO notification_templates (id, name, description, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description, updated_at = EXCLUDED.updated_at`,
			t.ID, t.Name, t.Description, t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("save template: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM notification_template_variants WHERE template_id = $1`, t.ID); err != nil {
			return fmt.Errorf("replace template variants: %w", err)
		}
		batch := &pgx.Batch{}
		for _, v := range t.Variants {
			batch.Queue(`INSERT INTO notification_template_variants (template_id, locale, subject, body, text_body, active)
				VALUES ($1, $2, $3, $4, $5, $6)`, t.ID, v.Locale, v.Subject, v.Body, v.TextBody, v.Active)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert template variants: %w", err)
		}
		return nil
	})
}
