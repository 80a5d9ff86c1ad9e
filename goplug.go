package goplug

import (
	"context"

	"github.com/fxsml/goplug/message"
)

// Handler processes a message and returns the resulting message. It is both
// the compiled form of a pipeline and the continuation type stages receive:
// a pipeline of n stages is one Handler built from n nested Handlers.
type Handler func(ctx context.Context, msg message.Message) (message.Message, error)

// StageFunc is the callable shape of a single stage. A stage transforms the
// message, then decides whether and when to invoke next. Returning without
// calling next short-circuits the pipeline: no later stage runs and the
// stage's return value becomes the pipeline's result.
//
// opts carries the stage's options. For plug stages it is the value the
// plug's Init returned at build time; for function stages it is exactly the
// value given at registration.
type StageFunc func(ctx context.Context, msg message.Message, next Handler, opts any) (message.Message, error)

// CallbackFunc is the callable shape of a callback stage. The Handler
// registered alongside it arrives in place of options.
type CallbackFunc func(ctx context.Context, msg message.Message, next Handler, callback Handler) (message.Message, error)

// InitFunc normalizes raw stage options at build time. It runs exactly once
// per Build, never during Run.
type InitFunc func(opts any) (any, error)

// Plug is a reusable pipeline component.
//
// Init receives the options given at registration and returns their resolved
// form; it is the place to apply defaults, accept convenience shapes, and
// reject bad configuration so misconfigured pipelines fail at build time.
// Build produces the stage's Handler around the continuation. The resolved
// options are whatever Init returned.
//
// A *Pipeline is itself a Plug, so pipelines nest inside pipelines.
type Plug interface {
	Init(opts any) (any, error)
	Build(next Handler, opts any) (Handler, error)
}

type plugFunc struct {
	init InitFunc
	call StageFunc
}

// NewPlug adapts a stage function into a Plug whose options pass through
// Init unchanged.
func NewPlug(call StageFunc) Plug {
	return plugFunc{call: call}
}

// NewPlugInit adapts a stage function and an options hook into a Plug.
func NewPlugInit(init InitFunc, call StageFunc) Plug {
	return plugFunc{init: init, call: call}
}

func (p plugFunc) Init(opts any) (any, error) {
	if p.init == nil {
		return opts, nil
	}
	return p.init(opts)
}

func (p plugFunc) Build(next Handler, opts any) (Handler, error) {
	return func(ctx context.Context, msg message.Message) (message.Message, error) {
		return p.call(ctx, msg, next, opts)
	}, nil
}

// Identity is a Handler that returns the message unchanged. It anchors
// compiled pipelines and serves as a subscriber handler when consuming a
// message needs no further work.
func Identity(_ context.Context, msg message.Message) (message.Message, error) {
	return msg, nil
}
