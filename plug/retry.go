package plug

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// ErrRetryExhausted wraps the final error after every retry attempt failed.
var ErrRetryExhausted = errors.New("plug: retry: attempts exhausted")

// RetryOptions configures the retry plug.
type RetryOptions struct {
	// Attempts is the total number of tries, including the first.
	// Default: 3.
	Attempts int

	// Backoff is the wait before the first retry; later waits grow
	// exponentially. Default: 100ms.
	Backoff time.Duration

	// MaxBackoff caps the exponential growth. Default: 5s.
	MaxBackoff time.Duration

	// Jitter randomizes each wait by ±Jitter (0 to 1) to avoid retry
	// storms. Default: 0.2.
	Jitter float64
}

func (o RetryOptions) applyDefaults() RetryOptions {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 100 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	} else if o.Jitter == 0 {
		o.Jitter = 0.2
	} else if o.Jitter > 1 {
		o.Jitter = 1
	}
	return o
}

// wait returns the jittered exponential backoff before the given retry,
// one-based.
func (o RetryOptions) wait(retry int) time.Duration {
	backoff := time.Duration(float64(o.Backoff) * math.Pow(2, float64(retry-1)))
	if backoff > o.MaxBackoff {
		backoff = o.MaxBackoff
	}
	factor := 1 + (rand.Float64()*2-1)*o.Jitter
	return time.Duration(float64(backoff) * factor)
}

// Retry returns a plug that re-invokes the rest of the pipeline when it
// fails, waiting between attempts with jittered exponential backoff. Context
// cancellation stops the attempts immediately. After the final failure the
// last error is returned wrapped in ErrRetryExhausted. Options: nil, a
// RetryOptions, or a map with keys "attempts", "backoff", "max_backoff",
// and "jitter" (durations as strings like "250ms").
func Retry() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			switch o := opts.(type) {
			case nil:
				return RetryOptions{}.applyDefaults(), nil
			case RetryOptions:
				return o.applyDefaults(), nil
			case map[string]any:
				var parsed RetryOptions
				var err error
				if parsed.Attempts, err = intFrom(o, "attempts", 0); err != nil {
					return nil, fmt.Errorf("retry: %w", err)
				}
				if parsed.Backoff, err = durationFrom(o, "backoff", 0); err != nil {
					return nil, fmt.Errorf("retry: %w", err)
				}
				if parsed.MaxBackoff, err = durationFrom(o, "max_backoff", 0); err != nil {
					return nil, fmt.Errorf("retry: %w", err)
				}
				if parsed.Jitter, err = floatFrom(o, "jitter", 0); err != nil {
					return nil, fmt.Errorf("retry: %w", err)
				}
				return parsed.applyDefaults(), nil
			default:
				return nil, fmt.Errorf("retry: want RetryOptions, got %T", opts)
			}
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(RetryOptions)
			var out message.Message
			var err error
			for attempt := 1; ; attempt++ {
				out, err = next(ctx, msg)
				if err == nil {
					return out, nil
				}
				if attempt >= o.Attempts {
					return out, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, o.Attempts, err)
				}
				select {
				case <-ctx.Done():
					return out, ctx.Err()
				case <-time.After(o.wait(attempt)):
				}
			}
		},
	)
}
