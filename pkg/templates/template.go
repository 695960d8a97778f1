package templates

import (
	"fmt"
	"slices"
	"time"
)

// Template is a named message with one variant per locale.
type Template struct {
	ID          string
	Name        string
	Description string
	Variants    []Variant
	UpdatedAt   time.Time
}

// Variant is the localized content of a template. Inactive variants are
// kept for editing but never rendered.
type Variant struct {
	Locale   string
	Subject  string
	Body     string
	TextBody string
	Active   bool
}

// Variant returns the active variant for a canonical locale.
func (t Template) Variant(locale string) (Variant, bool) {
	i := slices.IndexFunc(t.Variants, func(v Variant) bool {
		return v.Active && v.Locale == locale
	})
	if i < 0 {
		return Variant{}, false
	}
	return t.Variants[i], true
}

// Locales lists the locales with an active variant.
func (t Template) Locales() []string {
	out := make([]string, 0, len(t.Variants))
	for _, v := range t.Variants {
		if v.Active {
			out = append(out, v.Locale)
		}
	}
	return out
}

// Normalize canonicalises variant locales and checks every text field.
func (t Template) Normalize() (Template, error) {
	if t.ID == "" {
		return Template{}, fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}
	variants := make([]Variant, 0, len(t.Variants))
	for _, v := range t.Variants {
		locale, err := CanonicalLocale(v.Locale)
		if err != nil {
			return Template{}, fmt.Errorf("%w: template %q: %w", ErrInvalidTemplate, t.ID, err)
		}
		v.Locale = locale
		for _, text := range []string{v.Subject, v.Body, v.TextBody} {
			if res := Validate(text); !res.Valid {
				return Template{}, fmt.Errorf("%w: template %q locale %s: %s", ErrInvalidTemplate, t.ID, locale, res.Errors[0])
			}
		}
		variants = append(variants, v)
	}
	t.Variants = variants
	return t, nil
}

func (t Template) clone() Template {
	t.Variants = slices.Clone(t.Variants)
	return t
}
