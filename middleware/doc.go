// Package middleware provides composable wrappers around dispatcher
// callback invocations.
//
// Every fetch, execute and deliver call runs through the chain configured
// on the dispatcher. A [Middleware] sees the [task.Item] being handled and
// the next [Handler]; it may act before and after calling next, or
// short-circuit by returning an error. Middleware are applied right-to-left
// by [Chain]: the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → callback
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs stage, item, attempt, duration and outcome
//   - [Recover]: converts panics to [*PanicError] and logs the stack
//   - [Timeout]: gives each callback a context deadline
//   - [Tracing]: wraps each call in an OpenTelemetry span
//   - [Metrics]: records per-stage duration and call counters
//
// [ForStages] limits any middleware to selected stages, e.g. a timeout
// that only applies to execute calls:
//
//	middleware.ForStages(middleware.Timeout(30*time.Second), task.StageExecute)
//
// Errors returned by middleware are treated exactly like errors returned
// by the callback: for execute and deliver they are dropped unless wrapped
// with taskdispatch.Retry.
package middleware
