// Package channels implements the delivery adapters registered with the
// notifications service: onsite, email, LINE, WhatsApp, Telegram, SMS and
// mobile push.
//
// Every adapter reads platform credentials from Config and lets a tenant's
// channel config override them key by key:
//
//	cfg, _ := config.Parse[channels.Config]("")
//	adapters, err := channels.New(cfg, hub,
//		channels.WithContacts(store),
//		channels.WithLogger(log),
//	)
//	registry, err := notifications.NewRegistry(adapters...)
//
// Recipient addresses come from a notifications.ContactStore. A user without
// an address for a channel fails the delivery with
// notifications.ErrMissingRecipient.
//
// Provider calls share per-channel circuit breakers. Client errors do not
// open a breaker; server errors and timeouts do.
package channels
