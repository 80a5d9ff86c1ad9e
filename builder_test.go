package goplug_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

func TestBuilderFreeze(t *testing.T) {
	t.Run("registration after build is rejected", func(t *testing.T) {
		b := goplug.NewBuilder("frozen")
		b.UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			return next(ctx, msg)
		})
		if _, err := b.Build(); err != nil {
			t.Fatalf("Build() error: %v", err)
		}

		b.Use("anything")
		_, err := b.Build()
		if err == nil || !strings.Contains(err.Error(), "after build") {
			t.Fatalf("second Build() error = %v, want registered-after-build", err)
		}
	})

	t.Run("too many option values is rejected", func(t *testing.T) {
		b := goplug.NewBuilder("greedy")
		b.UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			return next(ctx, msg)
		}, "one", "two")

		_, err := b.Build()
		if err == nil || !strings.Contains(err.Error(), "at most one") {
			t.Fatalf("Build() error = %v, want at-most-one-options", err)
		}
	})
}

func TestBuilderPipelineOptions(t *testing.T) {
	t.Run("init hook resolves build options once", func(t *testing.T) {
		inits := 0
		var seen any
		b := goplug.NewBuilder("hooked",
			goplug.WithInit(func(opts any) (any, error) {
				inits++
				return strings.ToUpper(opts.(string)), nil
			}),
			goplug.WithTerminal(func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
				seen = opts
				return next(ctx, msg)
			}),
		)

		p, err := b.Build("myapp")
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		for range 3 {
			if _, err := p.Run(context.Background(), message.Message{}); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
		}

		if inits != 1 {
			t.Errorf("pipeline init ran %d times, want 1", inits)
		}
		if seen != "MYAPP" {
			t.Errorf("terminal saw options %v, want resolved MYAPP", seen)
		}
	})

	t.Run("init failure aborts build", func(t *testing.T) {
		b := goplug.NewBuilder("hooked",
			goplug.WithInit(func(opts any) (any, error) {
				return nil, errors.New("options required")
			}))

		p, err := b.Build()
		if p != nil || err == nil {
			t.Fatalf("Build() = %v, %v, want nil pipeline and error", p, err)
		}
	})
}

func TestBuilderRegistryOverride(t *testing.T) {
	reg := goplug.NewRegistry()
	reg.Register("only-here", goplug.NewPlug(
		func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			return next(ctx, msg.WithHeader("hit", true))
		}))

	b := goplug.NewBuilder("scoped", goplug.WithRegistry(reg))
	b.Use("only-here")

	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	out, err := p.Run(context.Background(), message.Message{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if _, ok := out.Header("hit"); !ok {
		t.Errorf("plug from the scoped registry did not run")
	}

	// The same name must not leak into the default registry.
	other := goplug.NewBuilder("unscoped")
	other.Use("only-here")
	if _, err := other.Build(); err == nil {
		t.Errorf("Build() resolved %q without the scoped registry", "only-here")
	}
}
