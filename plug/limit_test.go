package plug_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
	"github.com/fxsml/goplug/plug"
)

func TestLimit(t *testing.T) {
	t.Run("bounds concurrent runs", func(t *testing.T) {
		release := make(chan struct{})
		entered := make(chan struct{}, 5)

		b := goplug.NewBuilder("limited")
		b.Use(plug.Limit(), 2)
		b.UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			entered <- struct{}{}
			<-release
			return next(ctx, msg)
		})
		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := p.Run(context.Background(), message.Message{}); err != nil {
					t.Errorf("Run() error: %v", err)
				}
			}()
		}

		for range 2 {
			select {
			case <-entered:
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for a run to enter")
			}
		}
		select {
		case <-entered:
			t.Fatalf("a third run entered past the limit")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		wg.Wait()
		for range 3 {
			select {
			case <-entered:
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for a queued run")
			}
		}
	})

	t.Run("canceled context gives up the wait", func(t *testing.T) {
		release := make(chan struct{})
		entered := make(chan struct{})
		done := make(chan struct{})

		b := goplug.NewBuilder("limited")
		b.Use(plug.Limit(), plug.LimitOptions{Max: 1})
		b.UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			close(entered)
			<-release
			return next(ctx, msg)
		})
		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}

		go func() {
			defer close(done)
			p.Run(context.Background(), message.Message{})
		}()
		<-entered

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := p.Run(ctx, message.Message{}); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
		}

		close(release)
		<-done
	})

	t.Run("map options", func(t *testing.T) {
		b := goplug.NewBuilder("limited")
		b.Use(plug.Limit(), map[string]any{"max": 3})
		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		if _, err := p.Run(context.Background(), message.Message{}); err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})

	t.Run("rejects a missing limit", func(t *testing.T) {
		b := goplug.NewBuilder("limited")
		b.Use(plug.Limit())
		if _, err := b.Build(); err == nil {
			t.Errorf("Build() accepted a limit without a max")
		}

		b = goplug.NewBuilder("limited")
		b.Use(plug.Limit(), 0)
		if _, err := b.Build(); err == nil {
			t.Errorf("Build() accepted a zero max")
		}
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("burst passes immediately then blocks", func(t *testing.T) {
		b := goplug.NewBuilder("paced")
		b.Use(plug.RateLimit(), plug.RateLimitOptions{Rate: 1, Burst: 2})
		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}

		for range 2 {
			if _, err := p.Run(context.Background(), message.Message{}); err != nil {
				t.Fatalf("Run() error inside burst: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := p.Run(ctx, message.Message{}); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
		}
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		b := goplug.NewBuilder("paced")
		b.Use(plug.RateLimit(), plug.RateLimitOptions{Rate: 100, Burst: 1})
		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}

		if _, err := p.Run(context.Background(), message.Message{}); err != nil {
			t.Fatalf("Run() error on a full bucket: %v", err)
		}
		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := p.Run(ctx, message.Message{}); err != nil {
			t.Errorf("Run() error after refill: %v", err)
		}
	})

	t.Run("map options", func(t *testing.T) {
		b := goplug.NewBuilder("paced")
		b.Use(plug.RateLimit(), map[string]any{"rate": 1000, "burst": 2})
		p, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		if _, err := p.Run(context.Background(), message.Message{}); err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})

	t.Run("rejects a missing rate", func(t *testing.T) {
		b := goplug.NewBuilder("paced")
		b.Use(plug.RateLimit(), map[string]any{"burst": 2})
		if _, err := b.Build(); err == nil {
			t.Errorf("Build() accepted a rate limit without a rate")
		}
	})
}
