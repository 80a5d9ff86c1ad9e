// Package cloudevents maps messages to and from CloudEvents, so pipelines
// can feed systems that speak the CNCF CloudEvents format.
package cloudevents

import (
	"encoding/json"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fxsml/goplug/broker"
	"github.com/fxsml/goplug/message"
)

// ContentTypeJSON is the wire content type of a JSON-encoded CloudEvent.
const ContentTypeJSON = "application/cloudevents+json"

// DefaultEventType is used when a message carries no "type" header.
const DefaultEventType = "goplug.message"

// HeaderType is the message header mapped to the CloudEvents type attribute.
const HeaderType = "type"

// Extension attribute names for message fields CloudEvents does not model
// directly.
const (
	ExtensionCorrelationID   = "correlationid"
	ExtensionCreatedBy       = "createdby"
	ExtensionUserID          = "userid"
	ExtensionContentEncoding = "contentencoding"
)

// ToEvent converts a message into a CloudEvent. The message id, source,
// creation time, and content type map onto the standard attributes, the
// destination onto the subject, and the remaining envelope fields and
// headers onto extensions. A JSON body is preserved structurally, anything
// else is carried as raw bytes.
func ToEvent(msg message.Message) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()

	if msg.MessageID != "" {
		e.SetID(msg.MessageID)
	}
	if msg.Source != "" {
		e.SetSource(msg.Source)
	}
	if msg.Destination != "" {
		e.SetSubject(msg.Destination)
	}
	if !msg.CreatedAt.IsZero() {
		e.SetTime(msg.CreatedAt)
	}

	eventType := DefaultEventType
	if v, ok := msg.Header(HeaderType); ok {
		if s, ok := v.(string); ok && s != "" {
			eventType = s
		}
	}
	e.SetType(eventType)

	if msg.CorrelationID != "" {
		e.SetExtension(ExtensionCorrelationID, msg.CorrelationID)
	}
	if msg.CreatedBy != "" {
		e.SetExtension(ExtensionCreatedBy, msg.CreatedBy)
	}
	if msg.UserID != "" {
		e.SetExtension(ExtensionUserID, msg.UserID)
	}
	if msg.ContentEncoding != "" {
		e.SetExtension(ExtensionContentEncoding, msg.ContentEncoding)
	}
	for k, v := range msg.Headers() {
		if k == HeaderType {
			continue
		}
		e.SetExtension(k, v)
	}

	data, err := msg.BodyBytes()
	if err != nil {
		return e, fmt.Errorf("cloudevents: %w", err)
	}
	ct := msg.ContentType
	if ct != "" {
		e.SetDataContentType(ct)
	}
	if data != nil {
		if ct == "application/json" && json.Valid(data) {
			// preserve structured JSON
			err = e.SetData(ct, json.RawMessage(data))
		} else {
			err = e.SetData(ct, data)
		}
		if err != nil {
			return e, fmt.Errorf("cloudevents: set data: %w", err)
		}
	}
	return e, nil
}

// FromEvent converts a CloudEvent back into a message, inverting ToEvent.
// Unrecognized extensions become headers.
func FromEvent(e cloudevents.Event) (message.Message, error) {
	msg := message.Message{
		MessageID:   e.ID(),
		Source:      e.Source(),
		Destination: e.Subject(),
		ContentType: e.DataContentType(),
		CreatedAt:   e.Time(),
	}
	if t := e.Type(); t != "" {
		msg = msg.WithHeader(HeaderType, t)
	}

	for k, v := range e.Extensions() {
		switch k {
		case ExtensionCorrelationID:
			msg.CorrelationID = stringValue(v)
		case ExtensionCreatedBy:
			msg.CreatedBy = stringValue(v)
		case ExtensionUserID:
			msg.UserID = stringValue(v)
		case ExtensionContentEncoding:
			msg.ContentEncoding = stringValue(v)
		default:
			msg = msg.WithHeader(k, v)
		}
	}

	if data := e.Data(); len(data) > 0 {
		msg.Body = append([]byte(nil), data...)
	}
	return msg, nil
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Codec encodes messages as JSON CloudEvents, a drop-in alternative to the
// broker's default envelope.
type Codec struct{}

var _ broker.Codec = Codec{}

func (Codec) Encode(msg message.Message) ([]byte, error) {
	e, err := ToEvent(msg)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("cloudevents: encode: %w", err)
	}
	return data, nil
}

func (Codec) Decode(data []byte) (message.Message, error) {
	var e cloudevents.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return message.Message{}, fmt.Errorf("cloudevents: decode: %w", err)
	}
	return FromEvent(e)
}

func (Codec) ContentType() string { return ContentTypeJSON }
