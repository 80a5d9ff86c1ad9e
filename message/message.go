package message

import (
	"errors"
	"fmt"
	"time"
)

// ErrBodyNotBinary is returned by BodyBytes when the body is neither
// []byte nor string. Transports require binary bodies; run a format and
// encode stage before handing a message to one.
var ErrBodyNotBinary = errors.New("message: body is not binary")

// Status is the acknowledgment state a message carries through a pipeline.
type Status int

const (
	// StatusAck marks a message as successfully processed. It is the zero
	// value; freshly created messages are acked.
	StatusAck Status = iota
	// StatusNack marks a message as failed. Transports requeue or
	// dead-letter nacked messages instead of committing them.
	StatusNack
)

func (s Status) String() string {
	switch s {
	case StatusAck:
		return "ack"
	case StatusNack:
		return "nack"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Message is the unit of work passed through pipelines. It is a value type:
// stages receive a copy and return the same value or a transformed one, so
// no stage may assume exclusive access to anything it did not create itself.
// Scalar fields are safe to set directly on the local copy. Headers are kept
// behind copy-on-write accessors so two copies never share visible mutations.
// Body holds arbitrary payloads; replace it rather than mutating it in place
// when the payload is a pointer, slice, or map.
type Message struct {
	// Source identifies where the message entered the system, typically the
	// subscription topic or the producing component.
	Source string
	// Destination is the topic, queue, or subject the message is bound for.
	Destination string
	// MessageID uniquely identifies this message.
	MessageID string
	// CorrelationID ties the message to the request or conversation that
	// caused it. It survives replies and follow-up messages.
	CorrelationID string
	// ContentType names the serialization format of Body, e.g. "application/json".
	ContentType string
	// ContentEncoding names the transfer encoding applied to Body, e.g. "gzip".
	ContentEncoding string
	// CreatedBy names the application that produced the message.
	CreatedBy string
	// UserID identifies the principal on whose behalf the message was produced.
	UserID string
	// CreatedAt is the production timestamp.
	CreatedAt time.Time

	// Body is the payload. Replace, don't mutate.
	Body any

	// Status records the acknowledgment outcome. Use Ack and Nack rather
	// than setting it directly when a new copy is wanted.
	Status Status

	headers map[string]any
}

// Header returns the named header and whether it is present.
func (m Message) Header(key string) (any, bool) {
	v, ok := m.headers[key]
	return v, ok
}

// WithHeader returns a copy of the message with the header set. The
// original's headers are untouched.
func (m Message) WithHeader(key string, value any) Message {
	headers := make(map[string]any, len(m.headers)+1)
	for k, v := range m.headers {
		headers[k] = v
	}
	headers[key] = value
	m.headers = headers
	return m
}

// WithoutHeader returns a copy of the message with the header removed.
func (m Message) WithoutHeader(key string) Message {
	if _, ok := m.headers[key]; !ok {
		return m
	}
	headers := make(map[string]any, len(m.headers)-1)
	for k, v := range m.headers {
		if k != key {
			headers[k] = v
		}
	}
	m.headers = headers
	return m
}

// WithHeaders returns a copy of the message with all given headers set.
func (m Message) WithHeaders(headers map[string]any) Message {
	merged := make(map[string]any, len(m.headers)+len(headers))
	for k, v := range m.headers {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	m.headers = merged
	return m
}

// Headers returns a copy of all headers. Mutating the returned map does not
// affect the message.
func (m Message) Headers() map[string]any {
	headers := make(map[string]any, len(m.headers))
	for k, v := range m.headers {
		headers[k] = v
	}
	return headers
}

// WithBody returns a copy of the message with the body replaced.
func (m Message) WithBody(body any) Message {
	m.Body = body
	return m
}

// Ack returns a copy of the message marked successfully processed.
func (m Message) Ack() Message {
	m.Status = StatusAck
	return m
}

// Nack returns a copy of the message marked failed.
func (m Message) Nack() Message {
	m.Status = StatusNack
	return m
}

// Nacked reports whether the message is marked failed.
func (m Message) Nacked() bool {
	return m.Status == StatusNack
}

// BodyBytes returns the body as a byte slice. It accepts []byte and string
// bodies; anything else returns ErrBodyNotBinary.
func (m Message) BodyBytes() ([]byte, error) {
	switch body := m.Body.(type) {
	case []byte:
		return body, nil
	case string:
		return []byte(body), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBodyNotBinary, m.Body)
	}
}
