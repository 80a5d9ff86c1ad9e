// Package nats provides a NATS transport for broker pipelines.
//
// Destinations and sources are NATS subjects. Core NATS delivers
// at-most-once, so deliveries carry no acknowledgment callbacks; use a queue
// group to load-balance a subscription across consumers.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fxsml/goplug/broker"
)

// Config configures the NATS transport.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// Queue is the queue group for subscriptions. Empty means every
	// subscriber receives every message.
	Queue string

	// BufferSize is the channel buffer size for received messages.
	// Default is 256.
	BufferSize int

	// ConnectTimeout is the timeout for the initial connection.
	// Default is 5 seconds.
	ConnectTimeout time.Duration

	// Logger for operational logging.
	Logger *slog.Logger
}

func (c Config) applyDefaults() Config {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Transport implements broker.Transport on a NATS connection. The connection
// is established lazily on first use and shared by sends and subscriptions.
type Transport struct {
	config Config

	mu     sync.Mutex
	conn   *nats.Conn
	closed bool
}

var _ broker.Transport = (*Transport)(nil)

// NewTransport creates a NATS transport.
func NewTransport(config Config) *Transport {
	return &Transport{config: config.applyDefaults()}
}

func (t *Transport) connection() (*nats.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, broker.ErrTransportClosed
	}
	if t.conn != nil {
		return t.conn, nil
	}

	conn, err := nats.Connect(
		t.config.URL,
		nats.Timeout(t.config.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				t.config.Logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			t.config.Logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", t.config.URL, err)
	}
	t.conn = conn
	return conn, nil
}

func (t *Transport) Send(ctx context.Context, destination string, data []byte) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if err := conn.Publish(destination, data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", destination, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, source string) (<-chan broker.Delivery, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	msgCh := make(chan *nats.Msg, t.config.BufferSize)
	var sub *nats.Subscription
	if t.config.Queue != "" {
		sub, err = conn.ChanQueueSubscribe(source, t.config.Queue, msgCh)
	} else {
		sub, err = conn.ChanSubscribe(source, msgCh)
	}
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", source, err)
	}

	t.config.Logger.Info("NATS subscription started",
		"subject", source,
		"queue", t.config.Queue,
	)

	out := make(chan broker.Delivery, t.config.BufferSize)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				t.config.Logger.Debug("Context canceled, closing subscription", "subject", source)
				return
			case natsMsg, ok := <-msgCh:
				if !ok {
					return
				}
				d := broker.NewDelivery(natsMsg.Data, natsMsg.Subject, nil, nil)
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

// Close closes the NATS connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return broker.ErrTransportClosed
	}
	t.closed = true
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return nil
}
