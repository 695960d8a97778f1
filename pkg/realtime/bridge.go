package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// RedisBridge relays notifications through Redis pub/sub so a client
// connected to any instance receives them. Publish goes to Redis; Run feeds
// what arrives into the local hub.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisBridge(client redis.UniversalClient, channel string, hub *Hub, log *slog.Logger) *RedisBridge {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, logger: log}
}

func (b *RedisBridge) Publish(ctx context.Context, n notifications.Notification) error {
	if n.RecipientID == "" {
		return ErrMissingUser
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode realtime notification: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish realtime notification: %w", err)
	}
	return nil
}

// Run subscribes to the channel until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var n notifications.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "malformed realtime message", logger.Error(err))
				continue
			}
			if err := b.hub.Publish(ctx, n); err != nil {
				b.logger.LogAttrs(ctx, slog.LevelDebug, "realtime relay failed",
					logger.NotificationID(n.ID),
					logger.Error(err),
				)
			}
		}
	}
}
