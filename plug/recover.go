package plug

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// RecoveryError wraps a panic value with the stack trace captured at the
// point of panic, so panics downstream of the recover plug turn into
// regular errors.
type RecoveryError struct {
	// PanicValue is the original value passed to panic().
	PanicValue any
	// StackTrace is the full stack trace at the point of panic.
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("plug: panic recovered: %v", e.PanicValue)
}

// Recover returns a plug that converts panics in the rest of the pipeline
// into a *RecoveryError, returning the message as it arrived at this stage.
// It takes no options.
func Recover() goplug.Plug {
	return goplug.NewPlug(
		func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (out message.Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					out = msg
					err = &RecoveryError{
						PanicValue: r,
						StackTrace: string(debug.Stack()),
					}
				}
			}()
			return next(ctx, msg)
		},
	)
}
