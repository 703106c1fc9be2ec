package taskdispatch

import "context"

// WorkSource produces new work. A nil or empty slice with a nil error
// means there is no new work right now; a non-nil error is a failed
// fetch and is retried after a backoff.
type WorkSource[W any] interface {
	Fetch(ctx context.Context) ([]W, error)
}

// WorkExecutor turns a work item into a result. A nil error is success.
// Wrap the error with Retry to have the item executed again.
type WorkExecutor[W, R any] interface {
	Execute(ctx context.Context, item W) (R, error)
}

// ResultSink accepts a finished result. A nil error is success. Wrap the
// error with Retry to have the result delivered again.
type ResultSink[R any] interface {
	Deliver(ctx context.Context, result R) error
}

// FetchFunc adapts an ordinary function to a WorkSource.
type FetchFunc[W any] func(ctx context.Context) ([]W, error)

// Fetch calls f(ctx).
func (f FetchFunc[W]) Fetch(ctx context.Context) ([]W, error) { return f(ctx) }

// ExecuteFunc adapts an ordinary function to a WorkExecutor.
type ExecuteFunc[W, R any] func(ctx context.Context, item W) (R, error)

// Execute calls f(ctx, item).
func (f ExecuteFunc[W, R]) Execute(ctx context.Context, item W) (R, error) { return f(ctx, item) }

// DeliverFunc adapts an ordinary function to a ResultSink.
type DeliverFunc[R any] func(ctx context.Context, result R) error

// Deliver calls f(ctx, result).
func (f DeliverFunc[R]) Deliver(ctx context.Context, result R) error { return f(ctx, result) }

func nilSource[W any](s WorkSource[W]) bool {
	if s == nil {
		return true
	}
	f, ok := s.(FetchFunc[W])
	return ok && f == nil
}

func nilExecutor[W, R any](e WorkExecutor[W, R]) bool {
	if e == nil {
		return true
	}
	f, ok := e.(ExecuteFunc[W, R])
	return ok && f == nil
}

func nilSink[R any](s ResultSink[R]) bool {
	if s == nil {
		return true
	}
	f, ok := s.(DeliverFunc[R])
	return ok && f == nil
}
