package goplug

import (
	"context"
	"fmt"

	"github.com/fxsml/goplug/message"
)

// Pipeline is a compiled stage chain. It is immutable: the chain and every
// stage's resolved options are fixed at Build time, so a pipeline is safe
// for concurrent Run calls and repeated runs never re-resolve anything.
//
// Pipeline implements Plug. Registering one inside another with Use splices
// its stages into the enclosing chain directly; its own terminal stage runs
// after its stages and before the enclosing pipeline continues.
type Pipeline struct {
	name     string
	specs    []stageSpec
	registry *Registry
	init     InitFunc
	terminal StageFunc
	chain    Handler
}

var _ Plug = (*Pipeline)(nil)

// Name returns the name the pipeline was built under.
func (p *Pipeline) Name() string {
	return p.name
}

// Run sends a message through the compiled chain. Stage errors surface to
// the caller unchanged; the engine adds no retry, recovery, or logging of
// its own.
func (p *Pipeline) Run(ctx context.Context, msg message.Message) (message.Message, error) {
	return p.chain(ctx, msg)
}

// Handler returns the compiled chain as a plain Handler.
func (p *Pipeline) Handler() Handler {
	return p.chain
}

// Init implements Plug using the pipeline's own options hook.
func (p *Pipeline) Init(opts any) (any, error) {
	if p.init == nil {
		return opts, nil
	}
	return p.init(opts)
}

// Build implements Plug: it compiles the pipeline's stages around next, so
// an enclosing pipeline absorbs them with no indirection in between.
func (p *Pipeline) Build(next Handler, opts any) (Handler, error) {
	return p.compose(next, opts)
}

// compose folds the stage list from last to first around next. The base of
// the fold is the pipeline's terminal stage wrapped around next with the
// pipeline's resolved options; each earlier stage then wraps the handler
// built so far. Invoking the result runs the first-registered stage first.
func (p *Pipeline) compose(next Handler, opts any) (Handler, error) {
	h := next
	if p.terminal != nil {
		terminal, inner := p.terminal, next
		h = func(ctx context.Context, msg message.Message) (message.Message, error) {
			return terminal(ctx, msg, inner, opts)
		}
	}
	for i := len(p.specs) - 1; i >= 0; i-- {
		var err error
		h, err = p.buildStage(p.specs[i], h)
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (p *Pipeline) buildStage(s stageSpec, next Handler) (Handler, error) {
	switch s.kind {
	case kindPlug:
		plug, err := p.resolveTarget(s)
		if err != nil {
			return nil, err
		}
		resolved, err := plug.Init(s.opts)
		if err != nil {
			return nil, fmt.Errorf("goplug: pipeline %q: stage %d (%s): options: %w", p.name, s.pos, s.name(), err)
		}
		h, err := plug.Build(next, resolved)
		if err != nil {
			return nil, fmt.Errorf("goplug: pipeline %q: stage %d (%s): %w", p.name, s.pos, s.name(), err)
		}
		return h, nil
	case kindFunc:
		fn, opts := s.fn, s.opts
		return func(ctx context.Context, msg message.Message) (message.Message, error) {
			return fn(ctx, msg, next, opts)
		}, nil
	case kindCallback:
		fn, callback := s.callback, s.handler
		return func(ctx context.Context, msg message.Message) (message.Message, error) {
			return fn(ctx, msg, next, callback)
		}, nil
	default:
		return nil, fmt.Errorf("goplug: pipeline %q: stage %d: unknown kind %v", p.name, s.pos, s.kind)
	}
}

func (p *Pipeline) resolveTarget(s stageSpec) (Plug, error) {
	switch target := s.target.(type) {
	case Plug:
		return target, nil
	case string:
		reg := p.registry
		if reg == nil {
			reg = defaultRegistry
		}
		if plug, ok := reg.Lookup(target); ok {
			return plug, nil
		}
		return nil, &UnresolvedStageError{Pipeline: p.name, Target: target, Pos: s.pos}
	default:
		return nil, &UnresolvedStageError{Pipeline: p.name, Target: s.target, Pos: s.pos}
	}
}
