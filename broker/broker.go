// Package broker binds pipelines to messaging transports. A Broker routes
// outgoing messages through named pipelines onto a Transport and feeds
// incoming deliveries through pipelines into handlers, acknowledging each
// delivery from the processing outcome.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

var (
	// ErrAlreadyStarted is returned when mutating or starting a running broker.
	ErrAlreadyStarted = errors.New("broker: already started")
	// ErrNotStarted is returned when publishing on or closing a broker that
	// was never started.
	ErrNotStarted = errors.New("broker: not started")
	// ErrNacked is passed to Delivery.Nack when a handler returned a nacked
	// message without an error.
	ErrNacked = errors.New("broker: message nacked")
)

// DefinitionError reports a route referencing a pipeline name that was never
// registered. It surfaces from Start, before any message moves.
type DefinitionError struct {
	Route    string
	Pipeline string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("broker: route %q: unknown pipeline %q", e.Route, e.Pipeline)
}

// Config configures a Broker.
type Config struct {
	// Transport moves encoded messages. Required.
	Transport Transport
	// Codec converts messages to wire form. Default: EnvelopeCodec.
	Codec Codec
	// Logger for operational logging. Default: slog.Default().
	Logger *slog.Logger
}

func (c Config) defaults() Config {
	if c.Codec == nil {
		c.Codec = EnvelopeCodec{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type publication struct {
	name        string
	destination string
	pipeThrough []string
	send        goplug.Handler
}

type subscription struct {
	name        string
	source      string
	pipeThrough []string
	handler     goplug.Handler
	receive     goplug.Handler
}

// Broker routes messages between pipelines and a transport. Pipelines,
// publications, and subscriptions are registered up front; Start composes
// every route's chain once and begins consuming.
type Broker struct {
	config Config

	mu        sync.Mutex
	started   bool
	closed    bool
	pipelines map[string]*goplug.Pipeline
	outgoing  map[string]*publication
	incoming  map[string]*subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a broker on the given transport.
func New(config Config) *Broker {
	return &Broker{
		config:    config.defaults(),
		pipelines: make(map[string]*goplug.Pipeline),
		outgoing:  make(map[string]*publication),
		incoming:  make(map[string]*subscription),
	}
}

// Pipeline registers a pipeline for pipe-through references by name.
func (b *Broker) Pipeline(name string, p *goplug.Pipeline) error {
	if p == nil {
		return fmt.Errorf("broker: pipeline %q is nil", name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	if _, ok := b.pipelines[name]; ok {
		return fmt.Errorf("broker: pipeline %q already registered", name)
	}
	b.pipelines[name] = p
	return nil
}

// Outgoing declares a publication: Publish(ctx, name, msg) runs the named
// pipelines in order and sends the result to destination. A destination the
// pipelines stamped on the message wins over the route's.
func (b *Broker) Outgoing(name, destination string, pipeThrough ...string) error {
	if name == "" || destination == "" {
		return errors.New("broker: outgoing route needs a name and a destination")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	if _, ok := b.outgoing[name]; ok {
		return fmt.Errorf("broker: outgoing %q already registered", name)
	}
	b.outgoing[name] = &publication{name: name, destination: destination, pipeThrough: pipeThrough}
	return nil
}

// Incoming declares a subscription: deliveries arriving on source run
// through the named pipelines into handler. The delivery is acked when the
// chain returns an acked message and nacked on error or a nacked result.
func (b *Broker) Incoming(name, source string, handler goplug.Handler, pipeThrough ...string) error {
	if name == "" || source == "" {
		return errors.New("broker: incoming route needs a name and a source")
	}
	if handler == nil {
		return fmt.Errorf("broker: incoming %q: handler is nil", name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	if _, ok := b.incoming[name]; ok {
		return fmt.Errorf("broker: incoming %q already registered", name)
	}
	b.incoming[name] = &subscription{name: name, source: source, pipeThrough: pipeThrough, handler: handler}
	return nil
}

// Start composes every route's chain and begins consuming subscriptions.
// Consumption stops when ctx is canceled or the broker is closed.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	for _, pub := range b.outgoing {
		send, err := b.compose(pub.name, pub.pipeThrough, b.sendHandler(pub.destination))
		if err != nil {
			return err
		}
		pub.send = send
	}
	for _, sub := range b.incoming {
		receive, err := b.compose(sub.name, sub.pipeThrough, sub.handler)
		if err != nil {
			return err
		}
		sub.receive = receive
	}

	runCtx, cancel := context.WithCancel(ctx)
	for _, sub := range b.incoming {
		deliveries, err := b.config.Transport.Subscribe(runCtx, sub.source)
		if err != nil {
			cancel()
			return fmt.Errorf("broker: subscribe %q: %w", sub.source, err)
		}
		b.wg.Add(1)
		go b.consume(runCtx, sub, deliveries)
	}
	b.cancel = cancel
	b.started = true
	return nil
}

// compose chains the route's pipelines around terminal, innermost last.
func (b *Broker) compose(route string, pipeThrough []string, terminal goplug.Handler) (goplug.Handler, error) {
	h := terminal
	for i := len(pipeThrough) - 1; i >= 0; i-- {
		name := pipeThrough[i]
		p, ok := b.pipelines[name]
		if !ok {
			return nil, &DefinitionError{Route: route, Pipeline: name}
		}
		opts, err := p.Init(nil)
		if err != nil {
			return nil, fmt.Errorf("broker: route %q: pipeline %q: %w", route, name, err)
		}
		h, err = p.Build(h, opts)
		if err != nil {
			return nil, fmt.Errorf("broker: route %q: pipeline %q: %w", route, name, err)
		}
	}
	return h, nil
}

// sendHandler terminates an outgoing chain at the transport. Nacked messages
// are not sent.
func (b *Broker) sendHandler(destination string) goplug.Handler {
	return func(ctx context.Context, msg message.Message) (message.Message, error) {
		if msg.Nacked() {
			return msg, nil
		}
		if msg.Destination == "" {
			msg.Destination = destination
		}
		data, err := b.config.Codec.Encode(msg)
		if err != nil {
			return msg, fmt.Errorf("broker: encode for %q: %w", msg.Destination, err)
		}
		if err := b.config.Transport.Send(ctx, msg.Destination, data); err != nil {
			return msg, fmt.Errorf("broker: send to %q: %w", msg.Destination, err)
		}
		return msg, nil
	}
}

func (b *Broker) consume(ctx context.Context, sub *subscription, deliveries <-chan Delivery) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.process(ctx, sub, d)
		}
	}
}

func (b *Broker) process(ctx context.Context, sub *subscription, d Delivery) {
	msg, err := b.config.Codec.Decode(d.Data)
	if err != nil {
		b.config.Logger.Error("dropping undecodable delivery",
			"subscription", sub.name,
			"source", d.Source,
			"error", err)
		d.Nack(err)
		return
	}
	if msg.Source == "" {
		msg.Source = d.Source
	}
	out, err := sub.receive(ctx, msg)
	switch {
	case err != nil:
		b.config.Logger.Error("message processing failed",
			"subscription", sub.name,
			"message_id", msg.MessageID,
			"error", err)
		d.Nack(err)
	case out.Nacked():
		d.Nack(ErrNacked)
	default:
		d.Ack()
	}
}

// Publish runs the named publication's chain and returns the processed
// message as sent.
func (b *Broker) Publish(ctx context.Context, name string, msg message.Message) (message.Message, error) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return msg, ErrNotStarted
	}
	pub, ok := b.outgoing[name]
	b.mu.Unlock()
	if !ok {
		return msg, fmt.Errorf("broker: unknown publication %q", name)
	}
	return pub.send(ctx, msg)
}

// Close stops consuming, waits for in-flight deliveries, and closes the
// transport.
func (b *Broker) Close() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return ErrNotStarted
	}
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancel := b.cancel
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
	return b.config.Transport.Close()
}
