// Package reminders sends one reminder per reservation a configured lead
// time before it starts.
//
// Each sweep looks, per tenant with reservations enabled, for reservations
// in ready_to_confirm or ready status that start within five minutes of
// now plus the tenant's lead time and have no reminder record yet. The
// reminder goes out through events.Router.SendReminder, after which exactly
// one Record is inserted, marked sent or failed.
//
// The record insert is the idempotency boundary. Stores must reject a second
// record for the same reservation atomically (the Postgres store uses a
// unique index) so concurrent sweeps in separate processes cannot both
// succeed.
package reminders
