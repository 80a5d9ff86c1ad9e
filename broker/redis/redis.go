// Package redis provides a Redis Pub/Sub transport for broker pipelines.
//
// Destinations and sources are Redis channels; sources containing glob
// metacharacters ("*", "?", "[") subscribe by pattern. Redis Pub/Sub is
// fire-and-forget, so deliveries carry no acknowledgment callbacks and
// messages published while no subscriber is connected are lost.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/fxsml/goplug/broker"
)

// Config configures the Redis transport.
type Config struct {
	// Addr is the Redis server address. Ignored when Client is set.
	Addr string

	// Password for the Redis server, if any. Ignored when Client is set.
	Password string

	// DB is the database number. Ignored when Client is set.
	DB int

	// Client overrides dialing for callers that already hold a client.
	// The transport does not close an injected client.
	Client *redis.Client

	// BufferSize is the channel buffer size for received messages.
	// Default is 256.
	BufferSize int

	// Logger for operational logging.
	Logger *slog.Logger
}

func (c Config) applyDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Transport implements broker.Transport on Redis Pub/Sub.
type Transport struct {
	config Config

	mu     sync.Mutex
	client *redis.Client
	owned  bool
	closed bool
}

var _ broker.Transport = (*Transport)(nil)

// NewTransport creates a Redis transport.
func NewTransport(config Config) *Transport {
	return &Transport{config: config.applyDefaults()}
}

func (t *Transport) connection() (*redis.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, broker.ErrTransportClosed
	}
	if t.client != nil {
		return t.client, nil
	}
	if t.config.Client != nil {
		t.client = t.config.Client
		return t.client, nil
	}
	t.client = redis.NewClient(&redis.Options{
		Addr:     t.config.Addr,
		Password: t.config.Password,
		DB:       t.config.DB,
	})
	t.owned = true
	return t.client, nil
}

func (t *Transport) Send(ctx context.Context, destination string, data []byte) error {
	client, err := t.connection()
	if err != nil {
		return err
	}
	if err := client.Publish(ctx, destination, data).Err(); err != nil {
		return fmt.Errorf("redis: publish to %s: %w", destination, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, source string) (<-chan broker.Delivery, error) {
	client, err := t.connection()
	if err != nil {
		return nil, err
	}

	var pubsub *redis.PubSub
	if strings.ContainsAny(source, "*?[") {
		pubsub = client.PSubscribe(ctx, source)
	} else {
		pubsub = client.Subscribe(ctx, source)
	}
	// Force the subscription onto the wire before returning, so sends that
	// immediately follow are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", source, err)
	}

	t.config.Logger.Info("Redis subscription started", "channel", source)

	msgCh := pubsub.Channel(redis.WithChannelSize(t.config.BufferSize))
	out := make(chan broker.Delivery, t.config.BufferSize)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				t.config.Logger.Debug("Context canceled, closing subscription", "channel", source)
				return
			case m, ok := <-msgCh:
				if !ok {
					return
				}
				d := broker.NewDelivery([]byte(m.Payload), m.Channel, nil, nil)
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the client if the transport dialed it.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return broker.ErrTransportClosed
	}
	t.closed = true
	if t.client != nil && t.owned {
		err := t.client.Close()
		t.client = nil
		return err
	}
	t.client = nil
	return nil
}
