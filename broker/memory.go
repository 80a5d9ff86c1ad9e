package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTransportClosed is returned by operations on a closed transport.
	ErrTransportClosed = errors.New("broker: transport closed")
	// ErrSendTimeout is returned when a send could not be buffered within
	// the configured timeout.
	ErrSendTimeout = errors.New("broker: send timeout")
)

// MemoryTransportConfig configures the in-process transport.
type MemoryTransportConfig struct {
	// BufferSize is the per-subscription channel buffer. Default: 100.
	BufferSize int
	// SendTimeout bounds how long Send blocks on a full subscription.
	// Zero blocks until delivered or the context is done.
	SendTimeout time.Duration
}

func (c MemoryTransportConfig) defaults() MemoryTransportConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	return c
}

// MemoryTransport is an in-process Transport for tests and single-binary
// deployments. Subscription sources are matched as hierarchical topics with
// "+" and "#" wildcards. Deliveries carry no acknowledgment callbacks, so
// nacked messages are not redelivered.
type MemoryTransport struct {
	config MemoryTransportConfig

	mu     sync.RWMutex
	subs   map[uint64]*memorySub
	closed bool

	nextID atomic.Uint64
}

type memorySub struct {
	pattern topicPattern
	ch      chan Delivery
	done    chan struct{}
}

var _ Transport = (*MemoryTransport)(nil)

// NewMemoryTransport creates an in-process transport.
func NewMemoryTransport(config MemoryTransportConfig) *MemoryTransport {
	return &MemoryTransport{
		config: config.defaults(),
		subs:   make(map[uint64]*memorySub),
	}
}

func (t *MemoryTransport) Send(ctx context.Context, destination string, data []byte) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrTransportClosed
	}
	var matching []*memorySub
	for _, sub := range t.subs {
		if sub.pattern.matches(destination) {
			matching = append(matching, sub)
		}
	}
	t.mu.RUnlock()

	if t.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.SendTimeout)
		defer cancel()
	}

	d := NewDelivery(data, destination, nil, nil)
	for _, sub := range matching {
		select {
		case sub.ch <- d:
		case <-sub.done:
			// Subscription went away between matching and delivery.
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrSendTimeout
			}
			return ctx.Err()
		}
	}
	return nil
}

func (t *MemoryTransport) Subscribe(ctx context.Context, source string) (<-chan Delivery, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	id := t.nextID.Add(1)
	sub := &memorySub{
		pattern: newTopicPattern(source),
		ch:      make(chan Delivery, t.config.BufferSize),
		done:    make(chan struct{}),
	}
	t.subs[id] = sub
	t.mu.Unlock()

	out := make(chan Delivery, t.config.BufferSize)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.remove(id)
				return
			case <-sub.done:
				return
			case d := <-sub.ch:
				select {
				case out <- d:
				case <-ctx.Done():
					t.remove(id)
					return
				case <-sub.done:
					return
				}
			}
		}
	}()
	return out, nil
}

func (t *MemoryTransport) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sub, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(sub.done)
	}
}

// Close drops all subscriptions and rejects further sends.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.closed = true
	for id, sub := range t.subs {
		delete(t.subs, id)
		close(sub.done)
	}
	return nil
}
