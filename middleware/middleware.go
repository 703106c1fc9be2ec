package middleware

import (
	"context"

	"github.com/xraph/taskdispatch/task"
)

// Handler is the terminal function that invokes a dispatcher callback.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the item being handled (for fetch
// calls, a descriptor of the call itself), and the next handler to call.
// Middleware MUST call next to continue the chain (unless short-circuiting
// on error).
type Middleware func(ctx context.Context, it *task.Item, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → callback
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, it *task.Item, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, it, prev)
			}
		}
		return h(ctx)
	}
}

// ForStages restricts mw to items in the listed stages. Items in other
// stages go straight to next.
func ForStages(mw Middleware, stages ...task.Stage) Middleware {
	return func(ctx context.Context, it *task.Item, next Handler) error {
		for _, s := range stages {
			if it.Stage == s {
				return mw(ctx, it, next)
			}
		}
		return next(ctx)
	}
}
