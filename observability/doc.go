// Package observability provides an OpenTelemetry metrics extension for
// taskdispatch. The MetricsExtension implements lifecycle hooks to record
// dispatcher-wide counters for fetched, completed, retried, dropped and
// delivered items and for failed fetch calls.
//
// For per-callback tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
