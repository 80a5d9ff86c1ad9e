package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// tracerName is the instrumentation scope reported on spans.
const tracerName = "github.com/fxsml/goplug/telemetry"

// DefaultSpanName is used when options carry no span name.
const DefaultSpanName = "goplug.process"

// Tracing returns a plug that wraps the continuation in an OpenTelemetry
// span. Options carry the span name: a string, or a map with "name". Spans
// are no-ops until the application installs a tracer provider.
func Tracing() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			switch v := opts.(type) {
			case nil:
				return DefaultSpanName, nil
			case string:
				if v != "" {
					return v, nil
				}
				return DefaultSpanName, nil
			case map[string]any:
				if s, ok := v["name"].(string); ok && s != "" {
					return s, nil
				}
				return DefaultSpanName, nil
			}
			return nil, errors.New("telemetry: tracing: options must be a span name")
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			name := opts.(string)
			tracer := otel.Tracer(tracerName)
			ctx, span := tracer.Start(ctx, name,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("message.id", msg.MessageID),
					attribute.String("message.destination", msg.Destination),
				),
			)
			defer span.End()

			out, err := next(ctx, msg)
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case out.Nacked():
				span.SetAttributes(attribute.String("message.status", "nack"))
			default:
				span.SetStatus(codes.Ok, "")
			}
			return out, err
		},
	)
}
