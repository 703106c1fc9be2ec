// Package ext defines the extension system for taskdispatch.
//
// Extensions are notified of item lifecycle events and can react to them:
// recording metrics, capturing dropped items, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnItemCompleted(ctx context.Context, it *task.Item, elapsed time.Duration) error {
//	    log.Printf("item %s executed in %s", it.ID, elapsed)
//	    return nil
//	}
//
// # Fetch Hooks
//
//   - [ItemsFetched]: the fetch callback returned new work
//   - [FetchFailed]: the fetch callback failed or panicked
//
// # Item Hooks
//
//   - [ItemStarted]: an execute or deliver callback is about to run
//   - [ItemCompleted]: the execute callback produced a result
//   - [ItemRetrying]: a callback failed retryably and the item was re-queued
//   - [ItemDropped]: a callback failed permanently and the item was discarded
//   - [ResultDelivered]: the deliver callback accepted a result
//
// # Other Hooks
//
//   - [Shutdown]: the dispatcher is shutting down gracefully
//
// Hooks run synchronously on the loop that raised the event, and the
// execute loops run concurrently, so hook implementations must be safe
// for concurrent use. The [Registry] fans out each event to all
// registered extensions that implement the corresponding hook interface.
package ext
