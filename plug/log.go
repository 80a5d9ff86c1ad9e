package plug

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// LogOptions configures the log plug.
type LogOptions struct {
	// Logger receives the log lines. Default: slog.Default().
	Logger *slog.Logger

	// Label names the traffic in log lines, e.g. "incoming" or "outgoing".
	// Default: "message".
	Label string

	// Level is the level for the start and finish lines. Failures always
	// log at error level. Default: slog.LevelInfo.
	Level slog.Level
}

func (o LogOptions) applyDefaults() LogOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Label == "" {
		o.Label = "message"
	}
	return o
}

// Log returns a plug that logs a line before and after the rest of the
// pipeline runs, with the elapsed duration. Options: nil, a *slog.Logger, a
// LogOptions, or a map with keys "label" and "level".
func Log() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			switch o := opts.(type) {
			case nil:
				return LogOptions{}.applyDefaults(), nil
			case *slog.Logger:
				return LogOptions{Logger: o}.applyDefaults(), nil
			case LogOptions:
				return o.applyDefaults(), nil
			case map[string]any:
				var parsed LogOptions
				var err error
				if parsed.Label, err = stringOpt(o, "label"); err != nil {
					return nil, fmt.Errorf("log: %w", err)
				}
				level, err := stringOpt(o, "level")
				if err != nil {
					return nil, fmt.Errorf("log: %w", err)
				}
				if level != "" {
					if err := parsed.Level.UnmarshalText([]byte(level)); err != nil {
						return nil, fmt.Errorf("log: option %q: %w", "level", err)
					}
				}
				return parsed.applyDefaults(), nil
			default:
				return nil, fmt.Errorf("log: want LogOptions, got %T", opts)
			}
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(LogOptions)
			o.Logger.Log(ctx, o.Level, "processing "+o.Label,
				"message_id", msg.MessageID,
				"destination", msg.Destination,
			)
			start := time.Now()
			out, err := next(ctx, msg)
			if err != nil {
				o.Logger.Log(ctx, slog.LevelError, "processing "+o.Label+" failed",
					"message_id", msg.MessageID,
					"destination", msg.Destination,
					"duration", time.Since(start),
					"error", err,
				)
				return out, err
			}
			o.Logger.Log(ctx, o.Level, "processed "+o.Label,
				"message_id", out.MessageID,
				"destination", out.Destination,
				"duration", time.Since(start),
				"status", out.Status.String(),
			)
			return out, nil
		},
	)
}
