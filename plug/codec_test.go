package plug_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/content"
	"github.com/fxsml/goplug/message"
	"github.com/fxsml/goplug/plug"
)

func TestFormatEncode(t *testing.T) {
	t.Run("text plain with identity encoding", func(t *testing.T) {
		b := goplug.NewBuilder("outgoing")
		b.Use(plug.Format(), "text/plain")
		b.Use(plug.Encode(), "identity")

		out := runPipeline(t, b, message.Message{Body: "hi"})

		if out.ContentType != "text/plain" {
			t.Errorf("ContentType = %q, want text/plain", out.ContentType)
		}
		if out.ContentEncoding != "identity" {
			t.Errorf("ContentEncoding = %q, want identity", out.ContentEncoding)
		}
		body, err := out.BodyBytes()
		if err != nil {
			t.Fatalf("BodyBytes() error: %v", err)
		}
		if string(body) != "hi" {
			t.Errorf("body = %q, want %q", body, "hi")
		}
	})

	t.Run("json with gzip round trips through parse and decode", func(t *testing.T) {
		outgoing := goplug.NewBuilder("outgoing")
		outgoing.Use(plug.Format(), content.TypeJSON)
		outgoing.Use(plug.Encode(), content.EncodingGzip)

		wire := runPipeline(t, outgoing, message.Message{Body: map[string]any{"n": float64(7)}})

		incoming := goplug.NewBuilder("incoming")
		incoming.Use(plug.Decode(), content.EncodingGzip)
		incoming.Use(plug.Parse(), content.TypeJSON)

		out := runPipeline(t, incoming, wire)
		obj, ok := out.Body.(map[string]any)
		if !ok {
			t.Fatalf("parsed body = %T, want map", out.Body)
		}
		if obj["n"] != float64(7) {
			t.Errorf("round-tripped body = %v, want n=7", obj)
		}
	})

	t.Run("defaults are text plain and identity", func(t *testing.T) {
		b := goplug.NewBuilder("outgoing")
		b.Use(plug.Format())
		b.Use(plug.Encode())

		out := runPipeline(t, b, message.Message{Body: "hi"})
		if out.ContentType != content.TypeText || out.ContentEncoding != content.EncodingIdentity {
			t.Errorf("defaults = %q/%q, want text/plain with identity", out.ContentType, out.ContentEncoding)
		}
	})

	t.Run("unknown content type fails the build", func(t *testing.T) {
		b := goplug.NewBuilder("outgoing")
		b.Use(plug.Format(), "application/x-nothing")

		p, err := b.Build()
		if p != nil {
			t.Fatalf("Build() returned a pipeline alongside error %v", err)
		}
		var unknown *content.UnknownContentTypeError
		if !errors.As(err, &unknown) {
			t.Fatalf("Build() error = %v, want *UnknownContentTypeError", err)
		}
	})

	t.Run("unknown encoding fails the build", func(t *testing.T) {
		b := goplug.NewBuilder("outgoing")
		b.Use(plug.Encode(), "zstd")

		_, err := b.Build()
		var unknown *content.UnknownEncodingError
		if !errors.As(err, &unknown) {
			t.Fatalf("Build() error = %v, want *UnknownEncodingError", err)
		}
	})

	t.Run("format failure surfaces at run", func(t *testing.T) {
		b := goplug.NewBuilder("outgoing")
		b.Use(plug.Format(), content.TypeText)

		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		if _, err := p.Run(context.Background(), message.Message{Body: struct{ N int }{1}}); err == nil {
			t.Errorf("Run() formatted a struct as text/plain")
		}
	})
}
