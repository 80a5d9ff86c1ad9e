package plug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// Headers stamped onto dead-lettered copies.
const (
	// HeaderDeadLetterReason carries why the message was dead-lettered.
	HeaderDeadLetterReason = "dead_letter_reason"
	// HeaderDeadLetterSource carries the destination the message was
	// originally bound for.
	HeaderDeadLetterSource = "dead_letter_source"
)

// DeadLetterOptions configures the dead letter plug. It carries a publish
// function, so this plug cannot be assembled from configuration; wire it in
// code with Use(plug.DeadLetter(), opts).
type DeadLetterOptions struct {
	// Publish delivers the dead-lettered copy, typically a broker
	// publication bound to the dead letter destination. Required.
	Publish func(ctx context.Context, msg message.Message) error

	// Destination is stamped onto the copy before publishing. Required.
	Destination string

	// Logger for publish failures. Default: slog.Default().
	Logger *slog.Logger
}

// DeadLetter returns a plug that publishes a copy of the message to a dead
// letter destination whenever the rest of the pipeline fails or returns a
// nacked message. The original outcome is unchanged: errors still propagate
// and nacked results stay nacked.
func DeadLetter() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			o, ok := opts.(DeadLetterOptions)
			if !ok {
				return nil, fmt.Errorf("dead_letter: want DeadLetterOptions, got %T", opts)
			}
			if o.Publish == nil {
				return nil, errors.New("dead_letter: Publish required")
			}
			if o.Destination == "" {
				return nil, errors.New("dead_letter: Destination required")
			}
			if o.Logger == nil {
				o.Logger = slog.Default()
			}
			return o, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(DeadLetterOptions)
			out, err := next(ctx, msg)
			if err == nil && !out.Nacked() {
				return out, nil
			}

			reason := "nacked"
			if err != nil {
				reason = err.Error()
			}
			dead := msg.
				WithHeader(HeaderDeadLetterReason, reason).
				WithHeader(HeaderDeadLetterSource, msg.Destination)
			dead.Destination = o.Destination

			if publishErr := o.Publish(ctx, dead); publishErr != nil {
				o.Logger.Error("dead letter publish failed",
					"message_id", msg.MessageID,
					"destination", o.Destination,
					"error", publishErr,
				)
			}
			return out, err
		},
	)
}
