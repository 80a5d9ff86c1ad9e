package goplug

import (
	"fmt"
)

// stageKind discriminates how a stage was registered. The kind follows from
// the Builder method the caller used; it is never inferred from the shape of
// the target value.
type stageKind int

const (
	kindPlug stageKind = iota
	kindFunc
	kindCallback
)

func (k stageKind) String() string {
	switch k {
	case kindPlug:
		return "plug"
	case kindFunc:
		return "func"
	case kindCallback:
		return "callback"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// stageSpec is one registered stage: the raw material Build turns into a
// link of the compiled chain. Specs exist only inside a Builder; a compiled
// Pipeline holds handlers, never specs.
type stageSpec struct {
	kind     stageKind
	target   any      // registry name or Plug value, kindPlug only
	fn       StageFunc
	callback CallbackFunc
	handler  Handler // the registered callback, kindCallback only
	opts     any
	pos      int
}

// name labels the stage in build errors.
func (s stageSpec) name() string {
	switch s.kind {
	case kindPlug:
		if name, ok := s.target.(string); ok {
			return name
		}
		return fmt.Sprintf("%T", s.target)
	case kindCallback:
		return "callback"
	default:
		return "func"
	}
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegistry sets the registry used to resolve string stage references.
// Builders default to the package registry.
func WithRegistry(reg *Registry) BuilderOption {
	return func(b *Builder) { b.registry = reg }
}

// WithInit sets the pipeline's own options hook. It runs once per Build on
// the options given to Build, or on the options an enclosing pipeline
// registered the nested pipeline with.
func WithInit(init InitFunc) BuilderOption {
	return func(b *Builder) { b.init = init }
}

// WithTerminal sets the pipeline's own terminal stage. It runs after every
// registered stage that invoked its continuation, immediately before control
// returns to whatever the pipeline was compiled onto, and receives the
// pipeline's resolved options.
func WithTerminal(call StageFunc) BuilderOption {
	return func(b *Builder) { b.terminal = call }
}

// Builder accumulates an ordered list of stages and compiles them into an
// immutable Pipeline. Registration only appends; nothing is resolved or
// validated before Build. Builders are single-goroutine, one-shot artifacts:
// Build freezes the builder, and later registrations are reported as an
// error by the next Build call.
type Builder struct {
	name     string
	registry *Registry
	init     InitFunc
	terminal StageFunc
	specs    []stageSpec
	built    bool
	err      error
}

// NewBuilder creates a pipeline builder. The name appears in build errors
// and is how brokers and enclosing tooling refer to the pipeline.
func NewBuilder(name string, opts ...BuilderOption) *Builder {
	b := &Builder{
		name:     name,
		registry: defaultRegistry,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Use appends a plug stage. target is either a name resolved against the
// registry at build time or a Plug value used directly; registering a
// *Pipeline splices its stages into this pipeline. opts takes at most one
// value, handed to the plug's Init during Build.
func (b *Builder) Use(target any, opts ...any) *Builder {
	return b.add(stageSpec{kind: kindPlug, target: target, opts: b.single(opts)})
}

// UseFunc appends a function stage. The options are delivered to fn exactly
// as registered here; no Init hook ever touches them.
func (b *Builder) UseFunc(fn StageFunc, opts ...any) *Builder {
	return b.add(stageSpec{kind: kindFunc, fn: fn, opts: b.single(opts)})
}

// UseCallback appends a callback stage: fn receives callback in place of
// options, verbatim.
func (b *Builder) UseCallback(fn CallbackFunc, callback Handler) *Builder {
	return b.add(stageSpec{kind: kindCallback, callback: fn, handler: callback})
}

func (b *Builder) add(s stageSpec) *Builder {
	if b.built {
		b.fail(fmt.Errorf("goplug: pipeline %q: stage registered after build", b.name))
		return b
	}
	s.pos = len(b.specs)
	b.specs = append(b.specs, s)
	return b
}

func (b *Builder) single(opts []any) any {
	switch len(opts) {
	case 0:
		return nil
	case 1:
		return opts[0]
	default:
		b.fail(fmt.Errorf("goplug: pipeline %q: stage %d: at most one options value, got %d", b.name, len(b.specs), len(opts)))
		return opts[0]
	}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build freezes the builder, resolves every stage exactly once, and compiles
// the chain. opts takes at most one value, passed through the pipeline's own
// init hook. Any unresolved target, failed Init, or builder misuse aborts the
// whole build: Build returns a nil pipeline and no partial artifact exists.
func (b *Builder) Build(opts ...any) (*Pipeline, error) {
	raw := b.single(opts)
	b.built = true
	if b.err != nil {
		return nil, b.err
	}

	specs := make([]stageSpec, len(b.specs))
	copy(specs, b.specs)

	p := &Pipeline{
		name:     b.name,
		specs:    specs,
		registry: b.registry,
		init:     b.init,
		terminal: b.terminal,
	}
	resolved, err := p.Init(raw)
	if err != nil {
		return nil, fmt.Errorf("goplug: pipeline %q: options: %w", b.name, err)
	}
	chain, err := p.compose(Identity, resolved)
	if err != nil {
		return nil, err
	}
	p.chain = chain
	return p, nil
}
