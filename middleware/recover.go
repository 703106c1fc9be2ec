package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/taskdispatch/task"
)

// PanicError is a panic raised by a callback, converted to an error.
type PanicError struct {
	Stage task.Stage
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s callback: %v", e.Stage, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard runs next and converts a panic into a *PanicError. The dispatcher
// always installs it outermost; it does not log.
func Guard(ctx context.Context, it *task.Item, next Handler) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = &PanicError{Stage: it.Stage, Value: r, Stack: debug.Stack()}
		}
	}()
	return next(ctx)
}

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to *PanicError and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, it *task.Item, next Handler) error {
		err := Guard(ctx, it, next)
		if pe, ok := err.(*PanicError); ok {
			logger.Error("callback panicked",
				slog.String("stage", string(it.Stage)),
				slog.String("item_id", it.ID.String()),
				slog.Any("panic", pe.Value),
				slog.String("stack", string(pe.Stack)),
			)
		}
		return err
	}
}
