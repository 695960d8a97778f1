package templates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Rendered is the output of Engine.Render.
type Rendered = notifications.Rendered

// Engine renders stored templates. It implements notifications.Renderer.
type Engine struct {
	store         Store
	locales       LocaleResolver
	defaultLocale string
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocaleResolver enables rendering for a user id.
func WithLocaleResolver(r LocaleResolver) Option {
	return func(e *Engine) { e.locales = r }
}

// WithDefaultLocale sets the locale for users without one. It does not act
// as a fallback when a variant is missing.
func WithDefaultLocale(locale string) Option {
	return func(e *Engine) {
		if l, err := CanonicalLocale(locale); err == nil {
			e.defaultLocale = l
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		defaultLocale: DefaultLocale,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render resolves the locale, loads the active variant and substitutes
// vars into subject, body and text body.
//
// userIDOrLocale is treated as a user id when it parses as a UUID,
// otherwise as a locale code. There is no fallback locale: a template
// without an active variant for the resolved locale returns
// ErrVariantNotFound.
func (e *Engine) Render(ctx context.Context, templateID, userIDOrLocale string, vars map[string]any) (Rendered, error) {
	locale, err := e.resolveLocale(ctx, userIDOrLocale)
	if err != nil {
		return Rendered{}, err
	}

	t, err := e.store.Template(ctx, templateID)
	if err != nil {
		return Rendered{}, fmt.Errorf("load template %q: %w", templateID, err)
	}

	v, ok := t.Variant(locale)
	if !ok {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "template variant missing",
			slog.String("template_id", templateID),
			slog.String("locale", locale),
		)
		return Rendered{}, fmt.Errorf("%w: template %q locale %s", ErrVariantNotFound, templateID, locale)
	}

	return Rendered{
		Subject:  Substitute(v.Subject, vars),
		Body:     Substitute(v.Body, vars),
		TextBody: Substitute(v.TextBody, vars),
		Locale:   locale,
	}, nil
}

func (e *Engine) resolveLocale(ctx context.Context, userIDOrLocale string) (string, error) {
	if _, err := uuid.Parse(userIDOrLocale); err != nil {
		return CanonicalLocale(userIDOrLocale)
	}
	if e.locales == nil {
		return e.defaultLocale, nil
	}

	raw, err := e.locales.Locale(ctx, userIDOrLocale)
	if err != nil {
		return "", fmt.Errorf("resolve user locale: %w", err)
	}
	if raw == "" {
		return e.defaultLocale, nil
	}
	locale, err := CanonicalLocale(raw)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "stored user locale is invalid",
			logger.UserID(userIDOrLocale), logger.Error(err))
		return "", err
	}
	return locale, nil
}

// Validate checks template syntax.
func (e *Engine) Validate(text string) ValidationResult {
	return Validate(text)
}

var _ notifications.Renderer = (*Engine)(nil)
