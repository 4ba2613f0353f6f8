package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis pub/sub channel carrying events.
const DefaultChannel = "tontine:events"

// RedisBroker fans events out across server instances through redis pub/sub.
// Every instance, including the publisher, receives events from the single
// subscription, so local handles see one global order.
type RedisBroker struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	hub     *hub
	done    chan struct{}
}

// NewRedisBroker subscribes to the event channel and starts the receive loop.
func NewRedisBroker(ctx context.Context, client *redis.Client, opts ...Option) (*RedisBroker, error) {
	pubsub := client.Subscribe(ctx, DefaultChannel)
	// Wait for the subscription confirmation so events published after
	// this returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", DefaultChannel, err)
	}

	b := &RedisBroker{
		client:  client,
		channel: DefaultChannel,
		pubsub:  pubsub,
		hub:     newHub(opts...),
		done:    make(chan struct{}),
	}
	go b.run()
	return b, nil
}

func (b *RedisBroker) run() {
	defer close(b.done)
	b.consume(b.pubsub.ChannelWithSubscriptions())
}

// consume delivers messages until ch closes. go-redis reconnects and
// resubscribes on its own; events published during the gap are lost, so a
// fresh subscription confirmation lags every local handle and forces
// consumers to resync.
func (b *RedisBroker) consume(ch <-chan any) {
	for msg := range ch {
		switch m := msg.(type) {
		case *redis.Message:
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				slog.Warn("Dropping malformed event", "channel", m.Channel, "error", err)
				continue
			}
			b.hub.deliver(ev)
		case *redis.Subscription:
			if m.Kind != "subscribe" {
				continue
			}
			slog.Warn("Redis subscription re-established, lagging local handles", "channel", m.Channel)
			b.hub.dropAll(ErrLagged)
		}
	}
}

// Publish sends ev to the redis channel.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Open registers a local handle.
func (b *RedisBroker) Open(_ context.Context, filter Filter) (*Handle, error) {
	return b.hub.open(filter)
}

// Close stops the receive loop and closes every local handle.
func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	<-b.done
	b.hub.closeAll()
	return err
}
