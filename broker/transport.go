package broker

import (
	"context"

	"github.com/fxsml/goplug/message"
)

// Delivery is one message received from a transport, paired with its
// acknowledgment callbacks.
type Delivery struct {
	// Data is the encoded message as carried on the wire.
	Data []byte
	// Source is the topic, subject, or queue the delivery arrived on.
	Source string

	ack  func()
	nack func(error)
}

// NewDelivery pairs wire data with acknowledgment callbacks. Transports
// without an acknowledgment concept pass nil callbacks.
func NewDelivery(data []byte, source string, ack func(), nack func(error)) Delivery {
	return Delivery{Data: data, Source: source, ack: ack, nack: nack}
}

// Ack signals successful processing to the transport.
func (d Delivery) Ack() {
	if d.ack != nil {
		d.ack()
	}
}

// Nack signals failed processing, so the transport can redeliver or
// dead-letter per its own semantics.
func (d Delivery) Nack(err error) {
	if d.nack != nil {
		d.nack(err)
	}
}

// Transport moves encoded messages to and from a messaging system.
type Transport interface {
	// Send delivers data to the destination.
	Send(ctx context.Context, destination string, data []byte) error

	// Subscribe starts consuming from source. The returned channel closes
	// when ctx is canceled or the transport closes.
	Subscribe(ctx context.Context, source string) (<-chan Delivery, error)

	// Close releases the transport's resources.
	Close() error
}

// Codec converts messages to and from their wire form. EnvelopeCodec is the
// default; the cloudevents package provides a CloudEvents JSON alternative.
type Codec interface {
	Encode(msg message.Message) ([]byte, error)
	Decode(data []byte) (message.Message, error)

	// ContentType names the wire format, for transports that advertise one.
	ContentType() string
}
