// Package callbacks exposes the HTTP endpoint providers call with delivery
// reports. Reports are JSON encoded notifications.Callback values and, when
// a secret is configured, must be signed with the X-Webhook-Signature and
// X-Webhook-Timestamp headers produced by webhook.SignPayload.
//
// Responses: 202 with {"matched","applied","status"} when the report was
// accepted, 400 for malformed reports, 401 for bad signatures and 409 when
// the report would move a delivery backwards.
package callbacks
