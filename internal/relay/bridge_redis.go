package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	platformredis "coopmarket/internal/platform/redis"
)

// relayChannel is the Redis pub/sub channel every instance shares.
const relayChannel = "relay:broadcast"

// RedisBridge fans relay frames out across instances through Redis pub/sub.
// Frames published locally are re-delivered on every other instance's hub.
type RedisBridge struct {
	client *platformredis.Client
	hub    *Hub
	logger *slog.Logger
}

func NewRedisBridge(client *platformredis.Client, hub *Hub, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, logger: logger}
}

func (b *RedisBridge) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, relayChannel, payload).Err()
}

// Run subscribes and delivers frames to the local hub until the context is
// cancelled. Local broadcasts also arrive through here, which keeps delivery
// single-path whether one instance is running or ten.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case received, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(received.Payload), &msg); err != nil {
				b.logger.WarnContext(ctx, "dropping malformed relay frame", "error", err)
				continue
			}
			b.hub.deliver(msg)
		}
	}
}
