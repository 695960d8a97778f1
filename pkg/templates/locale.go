package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// DefaultLocale is used for users without a stored locale.
const DefaultLocale = "en"

// CanonicalLocale parses a BCP 47 code and returns its canonical form,
// e.g. "EN_us" becomes "en-US".
func CanonicalLocale(code string) (string, error) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLocale)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", errors.Join(fmt.Errorf("%w: %q", ErrInvalidLocale, code), err)
	}
	return tag.String(), nil
}

// LocaleResolver returns a user's preferred locale. An empty result means
// the user has none.
type LocaleResolver interface {
	Locale(ctx context.Context, userID string) (string, error)
}

// ContactLocales resolves locales from notification contacts.
type ContactLocales struct {
	Contacts notifications.ContactStore
}

func (c ContactLocales) Locale(ctx context.Context, userID string) (string, error) {
	contact, err := c.Contacts.Contact(ctx, userID)
	if errors.Is(err, notifications.ErrContactNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return contact.Locale, nil
}
