// Package notifications is the core of the multi-channel delivery
// subsystem.
//
// A Service turns a Request into a persisted Notification after consulting
// the preference Gate and, for templated requests, the Renderer. The Queue
// records one item per approved channel and dispatches items through the
// channel Adapters held by a Registry, consulting the RateLimiter right
// before each send. Every delivery state change goes through the Tracker,
// which enforces the transition table in DeliveryRules.
//
// One channel's failure never prevents the other channels of the same
// notification from being attempted. Failed items are retried by later
// batch sweeps until they reach the configured attempt ceiling; items
// postponed by the rate limiter stay pending and keep their attempt count.
//
// # Wiring
//
//	store := notifications.NewMemoryStorage()
//	registry := notifications.MustNewRegistry(onsite, email, telegram)
//	tracker := notifications.NewTracker(store, notifications.WithTrackerRegistry(registry))
//	queue := notifications.NewQueue(store, registry, tracker,
//		notifications.WithRateLimiter(limiter),
//		notifications.WithSettings(settingsProvider),
//	)
//	svc := notifications.NewService(store, queue, tracker,
//		notifications.WithGate(preferenceManager),
//		notifications.WithRenderer(templateEngine),
//	)
//
//	out, err := svc.Send(ctx, notifications.Request{
//		RecipientID: userID,
//		TenantID:    tenantID,
//		Kind:        notifications.KindOrder,
//		Subject:     "Order shipped",
//		Body:        "Your order is on its way",
//		Channels:    []notifications.Channel{notifications.ChannelOnsite, notifications.ChannelEmail},
//		Immediate:   true,
//	})
package notifications
