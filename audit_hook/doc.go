// Package audithook is a dispatcher extension that bridges lifecycle events
// to an audit trail backend.
//
// Every fetch and item lifecycle hook emits a structured audit event through
// the [Recorder] interface. The extension assigns severity levels (info for
// normal operations, warning for retries and failed fetches, critical for
// dropped items) and metadata such as stage, attempt, elapsed time and
// errors.
//
// # Usage
//
//	d, err := taskdispatch.New(src, exec, sink,
//	    taskdispatch.WithExtension(audithook.New(audithook.LogRecorder(logger))),
//	)
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionItemDropped,
//	        audithook.ActionFetchFailed,
//	    ),
//	)
package audithook
