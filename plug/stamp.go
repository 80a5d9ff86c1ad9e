package plug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// CreatedBy returns a plug that stamps the producing application onto every
// message. Options: the application name as a string, or a map with key
// "app". The name is required.
func CreatedBy() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			app, err := stringOpt(opts, "app")
			if err != nil {
				return nil, fmt.Errorf("created_by: %w", err)
			}
			if app == "" {
				return nil, errors.New("created_by: application name required")
			}
			return app, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			msg.CreatedBy = opts.(string)
			return next(ctx, msg)
		},
	)
}

// CreatedAt returns a plug that stamps the production timestamp. Options:
// nil for time.Now, or a func() time.Time clock, which tests use to pin
// timestamps.
func CreatedAt() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			switch clock := opts.(type) {
			case nil:
				return time.Now, nil
			case func() time.Time:
				return clock, nil
			case map[string]any:
				if len(clock) == 0 {
					return time.Now, nil
				}
				return nil, fmt.Errorf("created_at: unknown options %v", clock)
			default:
				return nil, fmt.Errorf("created_at: want clock func, got %T", opts)
			}
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			msg.CreatedAt = opts.(func() time.Time)()
			return next(ctx, msg)
		},
	)
}

// MessageID returns a plug that assigns a message ID when none is set yet.
// Options: nil for UUIDs, or a func() string generator.
func MessageID() goplug.Plug {
	return goplug.NewPlugInit(
		initGenerator("message_id"),
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			if msg.MessageID == "" {
				msg.MessageID = opts.(func() string)()
			}
			return next(ctx, msg)
		},
	)
}

// CorrelationID returns a plug that assigns a correlation ID when none is
// set yet. A correlation ID already present, for example copied from the
// message being replied to, is preserved. Options: nil for UUIDs, or a
// func() string generator.
func CorrelationID() goplug.Plug {
	return goplug.NewPlugInit(
		initGenerator("correlation_id"),
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			if msg.CorrelationID == "" {
				msg.CorrelationID = opts.(func() string)()
			}
			return next(ctx, msg)
		},
	)
}

func initGenerator(name string) goplug.InitFunc {
	return func(opts any) (any, error) {
		switch generate := opts.(type) {
		case nil:
			return uuid.NewString, nil
		case func() string:
			return generate, nil
		case map[string]any:
			if len(generate) == 0 {
				return uuid.NewString, nil
			}
			return nil, fmt.Errorf("%s: unknown options %v", name, generate)
		default:
			return nil, fmt.Errorf("%s: want generator func, got %T", name, opts)
		}
	}
}

// Destination returns a plug that sets where the message is bound. Options:
// the destination as a string, or a map with key "to". Required.
func Destination() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			to, err := stringOpt(opts, "to")
			if err != nil {
				return nil, fmt.Errorf("destination: %w", err)
			}
			if to == "" {
				return nil, errors.New("destination: target required")
			}
			return to, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			msg.Destination = opts.(string)
			return next(ctx, msg)
		},
	)
}
