package ext

import (
	"context"
	"time"

	"github.com/xraph/taskdispatch/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Fetch hooks
// ──────────────────────────────────────────────────

// ItemsFetched is called after a fetch call returns at least one item.
// fetch describes the fetch call; n is the number of items enqueued.
type ItemsFetched interface {
	OnItemsFetched(ctx context.Context, fetch *task.Item, n int) error
}

// FetchFailed is called when a fetch call returns an error or panics.
type FetchFailed interface {
	OnFetchFailed(ctx context.Context, fetch *task.Item, err error) error
}

// ──────────────────────────────────────────────────
// Item lifecycle hooks
// ──────────────────────────────────────────────────

// ItemStarted is called before an execute or deliver callback runs.
type ItemStarted interface {
	OnItemStarted(ctx context.Context, it *task.Item) error
}

// ItemCompleted is called after the execute callback succeeds and its
// result has been queued for delivery.
type ItemCompleted interface {
	OnItemCompleted(ctx context.Context, it *task.Item, elapsed time.Duration) error
}

// ItemRetrying is called when a callback fails with a retryable error
// and the item has been put back at the end of its queue.
type ItemRetrying interface {
	OnItemRetrying(ctx context.Context, it *task.Item, err error) error
}

// ItemDropped is called when an item is discarded after a permanent
// failure, a panic, or exhausting its attempts.
type ItemDropped interface {
	OnItemDropped(ctx context.Context, it *task.Item, err error) error
}

// ResultDelivered is called after the deliver callback succeeds.
type ResultDelivered interface {
	OnResultDelivered(ctx context.Context, it *task.Item, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown, after every loop has exited.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
