package goplug

import (
	"fmt"
)

// UnresolvedStageError reports a plug stage whose target could not be
// resolved at build time: a name missing from the registry, a nil target, or
// a value that is not a Plug. The build that produced it returned no
// pipeline.
type UnresolvedStageError struct {
	// Pipeline is the name of the pipeline being built.
	Pipeline string
	// Target is the registered target value.
	Target any
	// Pos is the zero-based registration position of the stage.
	Pos int
}

func (e *UnresolvedStageError) Error() string {
	if name, ok := e.Target.(string); ok {
		return fmt.Sprintf("goplug: pipeline %q: stage %d: no plug registered as %q", e.Pipeline, e.Pos, name)
	}
	return fmt.Sprintf("goplug: pipeline %q: stage %d: target %T is not a plug", e.Pipeline, e.Pos, e.Target)
}
