// Package taskdispatch provides a generic in-process task dispatcher. It
// decouples three concerns: acquiring new units of work from a source,
// executing them with a worker function, and delivering the results to a
// sink.
//
// A [Dispatcher] owns two unbounded FIFO queues and runs three kinds of
// loops over them:
//
//	source ──Fetch──▶ work queue ──Execute×N──▶ result queue ──Deliver──▶ sink
//
// One fetch loop refills the work queue while it holds fewer items than
// the configured concurrency. N execute loops drain it, and a single
// deliver loop drains the result queue. Callbacks run synchronously on
// their loop's goroutine.
//
// # Quick Start
//
//	d, err := taskdispatch.New(
//	    taskdispatch.FetchFunc[Job](pollJobs),
//	    taskdispatch.ExecuteFunc[Job, Report](runJob),
//	    taskdispatch.DeliverFunc[Report](postReport),
//	    taskdispatch.WithConcurrency(8),
//	    taskdispatch.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := d.Start(ctx); err != nil {
//	    return err
//	}
//	defer d.Shutdown(context.Background())
//
// # Failures
//
// A callback failure is dropped unless the error is marked with [Retry],
// in which case the item goes to the back of its queue. Fetch failures
// are always retried after a backoff. Panics in any callback are
// recovered and treated as non-retryable failures. Nothing is returned to
// the caller; register an extension (see the ext and dlq packages) to
// observe drops.
//
// # Shutdown
//
// [Dispatcher.Stop] only raises a flag. Loops notice it at their next
// iteration boundary, so an in-flight callback always runs to completion.
// Use [Dispatcher.Wait] or [Dispatcher.Shutdown] to join the loops.
//
// All identifiers are prefixed, K-sortable UUIDv7 values from the id
// package.
package taskdispatch
