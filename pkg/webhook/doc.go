// Package webhook is the HTTP plumbing shared by provider integrations.
//
// Client sends JSON or form requests to provider APIs (LINE, WhatsApp,
// SMS gateways, FCM) and returns the provider Response, including the body,
// so adapters can extract message ids and error payloads. Requests are not
// retried unless WithRetry is given; permanent 4xx failures are never
// retried. A CircuitBreaker per provider, obtained from Breakers, stops a
// failing provider from being hammered by every item of a batch.
//
//	client := webhook.NewClient()
//	breakers := webhook.NewBreakers(5, 2, 30*time.Second)
//
//	resp, err := client.PostJSON(ctx, "https://api.line.me/v2/bot/message/push", payload,
//		webhook.WithBearerToken(token),
//		webhook.WithCircuitBreaker(breakers.For("line")),
//	)
//
// Inbound delivery callbacks are authenticated with HMAC-SHA256 signatures
// bound to a timestamp (X-Webhook-Signature, X-Webhook-Timestamp,
// X-Webhook-ID). SignPayload produces them and VerifyRequest checks them on
// an incoming *http.Request.
package webhook
