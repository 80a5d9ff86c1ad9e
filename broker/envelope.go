package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxsml/goplug/message"
)

// envelope is the JSON wire form of a message. Body round-trips as base64.
type envelope struct {
	Source          string         `json:"source,omitempty"`
	Destination     string         `json:"destination,omitempty"`
	MessageID       string         `json:"message_id,omitempty"`
	CorrelationID   string         `json:"correlation_id,omitempty"`
	ContentType     string         `json:"content_type,omitempty"`
	ContentEncoding string         `json:"content_encoding,omitempty"`
	CreatedBy       string         `json:"created_by,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at,omitzero"`
	Headers         map[string]any `json:"headers,omitempty"`
	Body            []byte         `json:"body,omitempty"`
}

// EnvelopeCodec is the default wire format: a JSON envelope carrying every
// message field. The body must already be binary, so formatting and encoding
// plugs run before a broker send.
type EnvelopeCodec struct{}

var _ Codec = EnvelopeCodec{}

func (EnvelopeCodec) Encode(msg message.Message) ([]byte, error) {
	body, err := msg.BodyBytes()
	if err != nil {
		return nil, fmt.Errorf("broker: encode: %w", err)
	}
	env := envelope{
		Source:          msg.Source,
		Destination:     msg.Destination,
		MessageID:       msg.MessageID,
		CorrelationID:   msg.CorrelationID,
		ContentType:     msg.ContentType,
		ContentEncoding: msg.ContentEncoding,
		CreatedBy:       msg.CreatedBy,
		UserID:          msg.UserID,
		CreatedAt:       msg.CreatedAt,
		Body:            body,
	}
	if headers := msg.Headers(); len(headers) > 0 {
		env.Headers = headers
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("broker: encode: %w", err)
	}
	return data, nil
}

func (EnvelopeCodec) Decode(data []byte) (message.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return message.Message{}, fmt.Errorf("broker: decode: %w", err)
	}
	msg := message.Message{
		Source:          env.Source,
		Destination:     env.Destination,
		MessageID:       env.MessageID,
		CorrelationID:   env.CorrelationID,
		ContentType:     env.ContentType,
		ContentEncoding: env.ContentEncoding,
		CreatedBy:       env.CreatedBy,
		UserID:          env.UserID,
		CreatedAt:       env.CreatedAt,
	}
	if env.Body != nil {
		msg.Body = env.Body
	}
	if len(env.Headers) > 0 {
		msg = msg.WithHeaders(env.Headers)
	}
	return msg, nil
}

func (EnvelopeCodec) ContentType() string { return "application/json" }
