package plug

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// AckError returns a plug that swallows errors from the rest of the
// pipeline: the error is logged and the message that arrived at this stage
// is returned acked. Put it at the front of a subscription pipeline when a
// poison message must never be redelivered. Options: nil or a *slog.Logger.
func AckError() goplug.Plug {
	return goplug.NewPlugInit(
		initBoundaryLogger("ack_error"),
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			out, err := next(ctx, msg)
			if err == nil {
				return out, nil
			}
			opts.(*slog.Logger).Warn("acking failed message",
				"message_id", msg.MessageID,
				"source", msg.Source,
				"error", err,
			)
			return msg.Ack(), nil
		},
	)
}

// NackError returns a plug that converts errors from the rest of the
// pipeline into a nacked message: the error is logged and the message that
// arrived at this stage is returned nacked, so the transport redelivers or
// dead-letters it instead of the error reaching the caller. Options: nil or
// a *slog.Logger.
func NackError() goplug.Plug {
	return goplug.NewPlugInit(
		initBoundaryLogger("nack_error"),
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			out, err := next(ctx, msg)
			if err == nil {
				return out, nil
			}
			opts.(*slog.Logger).Warn("nacking failed message",
				"message_id", msg.MessageID,
				"source", msg.Source,
				"error", err,
			)
			return msg.Nack(), nil
		},
	)
}

func initBoundaryLogger(name string) goplug.InitFunc {
	return func(opts any) (any, error) {
		switch o := opts.(type) {
		case nil:
			return slog.Default(), nil
		case *slog.Logger:
			return o, nil
		case map[string]any:
			if len(o) == 0 {
				return slog.Default(), nil
			}
			return nil, fmt.Errorf("%s: unknown options %v", name, o)
		default:
			return nil, fmt.Errorf("%s: want *slog.Logger, got %T", name, opts)
		}
	}
}
