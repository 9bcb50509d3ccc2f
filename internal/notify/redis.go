package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes and receives events on a Redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus connects to url (redis://...) and verifies the connection.
func NewRedisBus(ctx context.Context, url, channel string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBus{client: client, channel: channel}, nil
}

// NewRedisBusFromClient wraps an existing client.
func NewRedisBusFromClient(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(Event)) (func(), error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	msgs := ps.Channel()
	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := Decode([]byte(msg.Payload))
				if err != nil {
					slog.WarnContext(ctx, "Dropping malformed change event",
						"channel", b.channel,
						"error", err)
					continue
				}
				fn(ev)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// Client returns the underlying connection, for sharing with lock helpers.
func (b *RedisBus) Client() *redis.Client {
	return b.client
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
