// Package events routes reservation lifecycle events to notifications.
//
// The Router decides who hears about an event and what they read:
//
//	created, updated, deleted, payment_received -> tenant owner
//	status_changed to ready_to_confirm          -> tenant owner
//	cancelled                                   -> owner and customer
//	confirmed_by_tenant, ready                  -> customer
//	status_changed to ready                     -> customer
//	confirmed_by_customer                       -> tenant owner
//	completed, no_show                          -> customer
//
// Customer-directed messages are skipped for anonymous reservations since
// there is nobody to deliver to.
//
// RouteNotification is the entry point for request handlers. It never
// returns an error: a failed notification must not fail the business
// transaction that raised the event. The outcome is logged instead. Route
// returns the same Result for callers that want to inspect it.
//
// KafkaConsumer feeds the router from a topic of JSON encoded EventContext
// values.
package events
