package broker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fxsml/goplug/broker"
	"github.com/fxsml/goplug/message"
)

func TestEnvelopeCodec_RoundTrip(t *testing.T) {
	codec := broker.EnvelopeCodec{}

	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	msg := message.Message{
		Source:          "orders/created",
		Destination:     "billing/charge",
		MessageID:       "msg-1",
		CorrelationID:   "corr-1",
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		CreatedBy:       "orders-service",
		UserID:          "user-7",
		CreatedAt:       created,
		Body:            []byte(`{"total":42}`),
	}
	msg = msg.WithHeader("attempt", "2")

	data, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.MessageID != "msg-1" || got.CorrelationID != "corr-1" {
		t.Errorf("ids = %q/%q", got.MessageID, got.CorrelationID)
	}
	if got.Source != "orders/created" || got.Destination != "billing/charge" {
		t.Errorf("routing = %q/%q", got.Source, got.Destination)
	}
	if got.ContentType != "application/json" || got.ContentEncoding != "gzip" {
		t.Errorf("content = %q/%q", got.ContentType, got.ContentEncoding)
	}
	if got.CreatedBy != "orders-service" || got.UserID != "user-7" {
		t.Errorf("origin = %q/%q", got.CreatedBy, got.UserID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if v, ok := got.Header("attempt"); !ok || v != "2" {
		t.Errorf("header attempt = %v, %v", v, ok)
	}
	body, err := got.BodyBytes()
	if err != nil {
		t.Fatalf("BodyBytes failed: %v", err)
	}
	if string(body) != `{"total":42}` {
		t.Errorf("body = %q", body)
	}
}

func TestEnvelopeCodec_RequiresBinaryBody(t *testing.T) {
	codec := broker.EnvelopeCodec{}

	_, err := codec.Encode(message.Message{Body: struct{ N int }{N: 1}})
	if !errors.Is(err, message.ErrBodyNotBinary) {
		t.Fatalf("expected ErrBodyNotBinary, got %v", err)
	}
}

func TestEnvelopeCodec_DecodeRejectsGarbage(t *testing.T) {
	codec := broker.EnvelopeCodec{}

	if _, err := codec.Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnvelopeCodec_ContentType(t *testing.T) {
	var codec broker.Codec = broker.EnvelopeCodec{}
	if got := codec.ContentType(); got != "application/json" {
		t.Errorf("ContentType = %q", got)
	}
}
