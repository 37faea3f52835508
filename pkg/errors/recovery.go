package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered value into a fatal ErrInternal. Call it
// with the result of recover(); a nil value yields nil.
func RecoverPanic(r any) error {
	if r == nil {
		return nil
	}

	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", r)
	}

	return ErrInternal.
		WithCause(cause).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsFatal()
}
