package middleware

import (
	"context"
	"time"

	"github.com/xraph/taskdispatch/task"
)

// Timeout returns middleware that gives every callback a context deadline
// of d. A callback that honours its context then returns
// context.DeadlineExceeded; one that ignores it still runs to completion,
// since a dispatcher never abandons an in-flight call. A non-positive d
// disables the middleware.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *task.Item, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
