package plug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// LimitOptions configures the limit plug.
type LimitOptions struct {
	// Max is how many messages may run through the rest of the pipeline
	// at once. Required.
	Max int64
}

// Limit returns a plug that bounds how many messages run through the rest
// of the pipeline concurrently. The slot is held for the whole downstream
// call, handler included, and waiting for one respects context
// cancellation. Init builds one slot pool per Build, so every Run of the
// built pipeline competes for the same slots. Options: an int, a
// LimitOptions, or a map with key "max".
func Limit() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			var parsed LimitOptions
			switch o := opts.(type) {
			case int:
				parsed.Max = int64(o)
			case int64:
				parsed.Max = o
			case LimitOptions:
				parsed = o
			case map[string]any:
				max, err := intFrom(o, "max", 0)
				if err != nil {
					return nil, fmt.Errorf("limit: %w", err)
				}
				parsed.Max = int64(max)
			default:
				return nil, fmt.Errorf("limit: want LimitOptions, got %T", opts)
			}
			if parsed.Max <= 0 {
				return nil, errors.New("limit: Max must be positive")
			}
			return semaphore.NewWeighted(parsed.Max), nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			sem := opts.(*semaphore.Weighted)
			if err := sem.Acquire(ctx, 1); err != nil {
				return msg, fmt.Errorf("limit: %w", err)
			}
			defer sem.Release(1)
			return next(ctx, msg)
		},
	)
}

// RateLimitOptions configures the rate limit plug.
type RateLimitOptions struct {
	// Rate is the sustained throughput in messages per second. Required.
	Rate float64

	// Burst is how many messages may pass without waiting after an idle
	// stretch. Default: 1.
	Burst int64
}

func (o RateLimitOptions) applyDefaults() RateLimitOptions {
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return o
}

// RateLimit returns a plug that holds messages to a sustained throughput.
// A token bucket refills at Rate tokens per second up to Burst; each
// message consumes one token, waiting for a refill when the bucket is
// empty. Waiting respects context cancellation. Like Limit, the bucket is
// shared by every Run of the built pipeline. Options: a RateLimitOptions
// or a map with keys "rate" and "burst".
func RateLimit() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			var parsed RateLimitOptions
			switch o := opts.(type) {
			case RateLimitOptions:
				parsed = o
			case map[string]any:
				var err error
				if parsed.Rate, err = floatFrom(o, "rate", 0); err != nil {
					return nil, fmt.Errorf("rate_limit: %w", err)
				}
				burst, err := intFrom(o, "burst", 0)
				if err != nil {
					return nil, fmt.Errorf("rate_limit: %w", err)
				}
				parsed.Burst = int64(burst)
			default:
				return nil, fmt.Errorf("rate_limit: want RateLimitOptions, got %T", opts)
			}
			if parsed.Rate <= 0 {
				return nil, errors.New("rate_limit: Rate must be positive")
			}
			parsed = parsed.applyDefaults()
			return newRateBucket(parsed.Rate, parsed.Burst), nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			b := opts.(*rateBucket)
			if err := b.take(ctx); err != nil {
				return msg, err
			}
			return next(ctx, msg)
		},
	)
}

// rateBucket is a token bucket refilled continuously by elapsed time. It
// starts full, so the first Burst messages pass without waiting.
type rateBucket struct {
	rate     float64
	capacity int64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func newRateBucket(rate float64, capacity int64) *rateBucket {
	return &rateBucket{
		rate:     rate,
		capacity: capacity,
		tokens:   float64(capacity),
		last:     time.Now(),
	}
}

// take consumes one token, blocking until the bucket refills or ctx is
// done.
func (b *rateBucket) take(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		b.tokens += now.Sub(b.last).Seconds() * b.rate
		if b.tokens > float64(b.capacity) {
			b.tokens = float64(b.capacity)
		}
		b.last = now
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		// Retry after a short sleep to avoid busy waiting.
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate_limit: %w", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
