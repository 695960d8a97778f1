// Package realtime streams in-app notifications to connected browsers.
//
// Hub keeps the websocket subscriptions of each user and implements the
// onsite channel's Publisher. Handler authenticates the upgrade request with
// an HS256 token whose subject is the user id, read from the Authorization
// header or the access_token query parameter, and writes one JSON frame per
// notification:
//
//	{"type":"notification","notification":{...}}
//
// A client that falls behind by more than the buffer size is disconnected;
// it can reload missed notifications from the inbox. With several instances
// RedisBridge replaces the hub as publisher and relays through Redis.
package realtime
