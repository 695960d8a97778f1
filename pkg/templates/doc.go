// Package templates renders localized notification content.
//
// Templates are stored per id with one Variant per canonical BCP 47 locale.
// Engine.Render picks the locale from a user id (through a LocaleResolver)
// or takes a locale code directly, then replaces {{dotted.path}}
// placeholders with values from a nested variables map. Placeholders that
// do not resolve are left verbatim so a missing variable is visible in the
// delivered text instead of silently blank.
//
// Catalogs can be loaded from YAML:
//
//	store := templates.NewMemoryStore()
//	if err := store.LoadYAMLFile(ctx, "templates.yaml"); err != nil {
//		return err
//	}
//	engine := templates.NewEngine(store,
//		templates.WithLocaleResolver(templates.ContactLocales{Contacts: contacts}),
//	)
//
//	out, err := engine.Render(ctx, "reservation_reminder", "ja", map[string]any{
//		"reservation": map[string]any{"date": "2024-05-01"},
//	})
package templates
