// Package kafka provides a Kafka transport for broker pipelines.
//
// Destinations and sources are Kafka topics; wildcards are not supported.
// Subscriptions join the configured consumer group, so partitions are
// balanced across consumers and offsets are committed when a delivery is
// acked. A nacked delivery is not committed and will be redelivered after a
// rebalance or restart.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fxsml/goplug/broker"
)

// Config configures the Kafka transport.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// ConsumerGroup is the consumer group ID for subscriptions.
	ConsumerGroup string

	// BufferSize is the channel buffer size for received messages.
	// Default is 256.
	BufferSize int

	// StartOffset controls where to start reading when no committed offset
	// exists. Use kafka.FirstOffset or kafka.LastOffset.
	// Default is kafka.LastOffset.
	StartOffset int64

	// CommitInterval is how often acked offsets are flushed.
	// Default is 1 second.
	CommitInterval time.Duration

	// MaxWait is the maximum time to wait for new messages.
	// Default is 1 second.
	MaxWait time.Duration

	// BatchSize is the producer batch size. Default is 100.
	BatchSize int

	// BatchTimeout is the maximum time to wait for a full batch.
	// Default is 1 second.
	BatchTimeout time.Duration

	// RequiredAcks controls producer acknowledgment.
	// Default is kafka.RequireAll.
	RequiredAcks kafka.RequiredAcks

	// Logger for operational logging.
	Logger *slog.Logger
}

func (c Config) applyDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.StartOffset == 0 {
		c.StartOffset = kafka.LastOffset
	}
	if c.CommitInterval <= 0 {
		c.CommitInterval = time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = kafka.RequireAll
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Transport implements broker.Transport on Kafka. Writers are created per
// destination topic and reused.
type Transport struct {
	config Config

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers []*kafka.Reader
	closed  bool
}

var _ broker.Transport = (*Transport)(nil)

// NewTransport creates a Kafka transport.
func NewTransport(config Config) *Transport {
	return &Transport{
		config:  config.applyDefaults(),
		writers: make(map[string]*kafka.Writer),
	}
}

func (t *Transport) writer(topic string) (*kafka.Writer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, broker.ErrTransportClosed
	}
	if w, ok := t.writers[topic]; ok {
		return w, nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(t.config.Brokers...),
		Topic:        topic,
		BatchSize:    t.config.BatchSize,
		BatchTimeout: t.config.BatchTimeout,
		RequiredAcks: t.config.RequiredAcks,
	}
	t.writers[topic] = w
	return w, nil
}

func (t *Transport) Send(ctx context.Context, destination string, data []byte) error {
	w, err := t.writer(destination)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", destination, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, source string) (<-chan broker.Delivery, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, broker.ErrTransportClosed
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        t.config.Brokers,
		GroupID:        t.config.ConsumerGroup,
		GroupTopics:    []string{source},
		StartOffset:    t.config.StartOffset,
		CommitInterval: t.config.CommitInterval,
		MaxWait:        t.config.MaxWait,
	})
	t.readers = append(t.readers, reader)
	t.mu.Unlock()

	t.config.Logger.Info("Kafka subscription started",
		"topic", source,
		"group", t.config.ConsumerGroup,
		"brokers", t.config.Brokers,
	)

	out := make(chan broker.Delivery, t.config.BufferSize)
	go func() {
		defer close(out)
		for {
			kafkaMsg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					t.config.Logger.Debug("Context canceled, closing subscription", "topic", source)
					return
				}
				t.config.Logger.Error("Failed to fetch message", "topic", source, "error", err)
				continue
			}

			msgCopy := kafkaMsg
			ack := func() {
				if err := reader.CommitMessages(ctx, msgCopy); err != nil {
					t.config.Logger.Error("Failed to commit offset",
						"topic", msgCopy.Topic,
						"partition", msgCopy.Partition,
						"offset", msgCopy.Offset,
						"error", err,
					)
				}
			}
			nack := func(err error) {
				// Not committing, so the message is redelivered.
				t.config.Logger.Warn("Message nacked",
					"topic", msgCopy.Topic,
					"partition", msgCopy.Partition,
					"offset", msgCopy.Offset,
					"error", err,
				)
			}

			d := broker.NewDelivery(kafkaMsg.Value, kafkaMsg.Topic, ack, nack)
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes all readers and writers.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return broker.ErrTransportClosed
	}
	t.closed = true

	var lastErr error
	for _, r := range t.readers {
		if err := r.Close(); err != nil {
			lastErr = err
		}
	}
	t.readers = nil
	for topic, w := range t.writers {
		if err := w.Close(); err != nil {
			lastErr = fmt.Errorf("kafka: close writer for %s: %w", topic, err)
		}
	}
	t.writers = make(map[string]*kafka.Writer)
	return lastErr
}
