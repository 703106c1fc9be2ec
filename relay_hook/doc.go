// Package relayhook relays dispatcher lifecycle events to an HTTP webhook.
// When registered as an extension, it posts a JSON [Event] envelope
// (taskdispatch.item.dropped, taskdispatch.fetch.failed, etc.) to a fixed
// URL at every lifecycle point.
//
// Usage:
//
//	hook := relayhook.New("https://hooks.example.com/dispatch")
//	taskdispatch.New(src, exec, sink, taskdispatch.WithExtension(hook))
//
// To restrict which events are emitted:
//
//	hook := relayhook.New(url,
//	    relayhook.WithEvents(
//	        relayhook.EventItemDropped,
//	        relayhook.EventFetchFailed,
//	    ),
//	)
//
// Posts are synchronous and run on the loop that fired the hook, so a slow
// endpoint slows that loop down. Failed posts are reported to the
// extension registry, which logs them; they never fail the item.
package relayhook
