package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/taskdispatch/id"
	"github.com/xraph/taskdispatch/task"
)

var (
	// ErrEntryNotFound is returned when no entry has the requested ID.
	ErrEntryNotFound = errors.New("taskdispatch: dlq entry not found")
	// ErrValueType is returned by Replay when an entry's value is not of
	// the type the target queue holds.
	ErrValueType = errors.New("taskdispatch: dlq entry value has unexpected type")
	// ErrStage is returned by Replay for an entry from a stage that has
	// no queue to replay into.
	ErrStage = errors.New("taskdispatch: dlq entry stage cannot be replayed")
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Stage filters by the stage that dropped the item. Empty means all stages.
	Stage task.Stage
}

// Store defines the storage contract for the dead letter queue.
type Store interface {
	// Push adds an entry to the dead letter queue.
	Push(ctx context.Context, entry *Entry) error

	// List returns entries matching the given options, oldest first.
	List(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// Get retrieves an entry by ID.
	Get(ctx context.Context, entryID id.ID) (*Entry, error)

	// MarkReplayed sets ReplayedAt on an entry. The actual re-enqueue is
	// handled by Replay.
	MarkReplayed(ctx context.Context, entryID id.ID) error

	// Delete removes a single entry.
	Delete(ctx context.Context, entryID id.ID) error

	// Purge removes entries with FailedAt before the given time and
	// returns the number of entries removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// Count returns the number of entries in the dead letter queue.
	Count(ctx context.Context) (int64, error)
}
