// Package dlq provides a dead letter queue for items a dispatcher has
// dropped: permanent execute or deliver failures, panics, and items that
// ran out of attempts. It supports inspection, replay and purging.
//
// The dispatcher itself never records drops. Register an [Extension] to
// capture them through the ext.ItemDropped hook:
//
//	store := dlq.NewMemoryStore(24 * time.Hour)
//	d, err := taskdispatch.New(source, exec, sink,
//	    taskdispatch.WithExtension(dlq.NewExtension(store, logger)),
//	)
//
// # Entry
//
// An [Entry] captures:
//   - ItemID / DispatcherID: original item identity
//   - Stage: the loop that dropped the item (execute or deliver)
//   - Value: the work or result value itself, kept in memory as-is
//   - Error: the final error message
//   - Attempt: how many times the stage callback ran
//   - FailedAt: when the item was dropped
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Replay
//
// [Replay] hands an entry's value back to a dispatcher. Execute-stage
// entries go back to the work queue through Enqueue; deliver-stage
// entries go back to the result queue through Redeliver. Replay sets
// ReplayedAt on the entry.
package dlq
