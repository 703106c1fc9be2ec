package dlq

import (
	"context"
	"fmt"

	"github.com/xraph/taskdispatch/id"
	"github.com/xraph/taskdispatch/task"
)

// Requeuer is the part of a dispatcher that Replay feeds entries back into.
// *taskdispatch.Dispatcher[W, R] satisfies it.
type Requeuer[W, R any] interface {
	Enqueue(items ...W)
	Redeliver(results ...R)
}

// Replay puts a DLQ entry's value back into a dispatcher and marks the
// entry as replayed. Execute-stage entries are enqueued as new work;
// deliver-stage entries are queued for delivery again. The replayed
// value starts over with a fresh item ID and attempt count.
func Replay[W, R any](ctx context.Context, store Store, entryID id.ID, d Requeuer[W, R]) (*Entry, error) {
	entry, err := store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	switch entry.Stage {
	case task.StageExecute:
		w, ok := entry.Value.(W)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrValueType, entry.Value)
		}
		d.Enqueue(w)
	case task.StageDeliver:
		r, ok := entry.Value.(R)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrValueType, entry.Value)
		}
		d.Redeliver(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrStage, entry.Stage)
	}

	if err := store.MarkReplayed(ctx, entryID); err != nil {
		// The value is already back in the dispatcher.
		return entry, err
	}
	return entry, nil
}

// ReplayAll replays every entry matching opts that has not been replayed
// yet and returns how many were replayed. It stops at the first error.
func ReplayAll[W, R any](ctx context.Context, store Store, opts ListOpts, d Requeuer[W, R]) (int, error) {
	entries, err := store.List(ctx, opts)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if e.Replayed() {
			continue
		}
		if _, err := Replay(ctx, store, e.ID, d); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
