package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskdispatch/task"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type itemsFetchedEntry struct {
	name string
	hook ItemsFetched
}

type fetchFailedEntry struct {
	name string
	hook FetchFailed
}

type itemStartedEntry struct {
	name string
	hook ItemStarted
}

type itemCompletedEntry struct {
	name string
	hook ItemCompleted
}

type itemRetryingEntry struct {
	name string
	hook ItemRetrying
}

type itemDroppedEntry struct {
	name string
	hook ItemDropped
}

type resultDeliveredEntry struct {
	name string
	hook ResultDelivered
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe to call concurrently with the emit methods; a
// dispatcher registers all of its extensions before it starts.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	itemsFetched    []itemsFetchedEntry
	fetchFailed     []fetchFailedEntry
	itemStarted     []itemStartedEntry
	itemCompleted   []itemCompletedEntry
	itemRetrying    []itemRetryingEntry
	itemDropped     []itemDroppedEntry
	resultDelivered []resultDeliveredEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ItemsFetched); ok {
		r.itemsFetched = append(r.itemsFetched, itemsFetchedEntry{name, h})
	}
	if h, ok := e.(FetchFailed); ok {
		r.fetchFailed = append(r.fetchFailed, fetchFailedEntry{name, h})
	}
	if h, ok := e.(ItemStarted); ok {
		r.itemStarted = append(r.itemStarted, itemStartedEntry{name, h})
	}
	if h, ok := e.(ItemCompleted); ok {
		r.itemCompleted = append(r.itemCompleted, itemCompletedEntry{name, h})
	}
	if h, ok := e.(ItemRetrying); ok {
		r.itemRetrying = append(r.itemRetrying, itemRetryingEntry{name, h})
	}
	if h, ok := e.(ItemDropped); ok {
		r.itemDropped = append(r.itemDropped, itemDroppedEntry{name, h})
	}
	if h, ok := e.(ResultDelivered); ok {
		r.resultDelivered = append(r.resultDelivered, resultDeliveredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Fetch event emitters
// ──────────────────────────────────────────────────

// EmitItemsFetched notifies all extensions that implement ItemsFetched.
func (r *Registry) EmitItemsFetched(ctx context.Context, fetch *task.Item, n int) {
	for _, e := range r.itemsFetched {
		if err := e.hook.OnItemsFetched(ctx, fetch, n); err != nil {
			r.logHookError("OnItemsFetched", e.name, err)
		}
	}
}

// EmitFetchFailed notifies all extensions that implement FetchFailed.
func (r *Registry) EmitFetchFailed(ctx context.Context, fetch *task.Item, fetchErr error) {
	for _, e := range r.fetchFailed {
		if err := e.hook.OnFetchFailed(ctx, fetch, fetchErr); err != nil {
			r.logHookError("OnFetchFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Item event emitters
// ──────────────────────────────────────────────────

// EmitItemStarted notifies all extensions that implement ItemStarted.
func (r *Registry) EmitItemStarted(ctx context.Context, it *task.Item) {
	for _, e := range r.itemStarted {
		if err := e.hook.OnItemStarted(ctx, it); err != nil {
			r.logHookError("OnItemStarted", e.name, err)
		}
	}
}

// EmitItemCompleted notifies all extensions that implement ItemCompleted.
func (r *Registry) EmitItemCompleted(ctx context.Context, it *task.Item, elapsed time.Duration) {
	for _, e := range r.itemCompleted {
		if err := e.hook.OnItemCompleted(ctx, it, elapsed); err != nil {
			r.logHookError("OnItemCompleted", e.name, err)
		}
	}
}

// EmitItemRetrying notifies all extensions that implement ItemRetrying.
func (r *Registry) EmitItemRetrying(ctx context.Context, it *task.Item, itemErr error) {
	for _, e := range r.itemRetrying {
		if err := e.hook.OnItemRetrying(ctx, it, itemErr); err != nil {
			r.logHookError("OnItemRetrying", e.name, err)
		}
	}
}

// EmitItemDropped notifies all extensions that implement ItemDropped.
func (r *Registry) EmitItemDropped(ctx context.Context, it *task.Item, itemErr error) {
	for _, e := range r.itemDropped {
		if err := e.hook.OnItemDropped(ctx, it, itemErr); err != nil {
			r.logHookError("OnItemDropped", e.name, err)
		}
	}
}

// EmitResultDelivered notifies all extensions that implement ResultDelivered.
func (r *Registry) EmitResultDelivered(ctx context.Context, it *task.Item, elapsed time.Duration) {
	for _, e := range r.resultDelivered {
		if err := e.hook.OnResultDelivered(ctx, it, elapsed); err != nil {
			r.logHookError("OnResultDelivered", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
