// Package observability provides OpenTelemetry metrics for the engine's
// event bus. Metrics.Attach subscribes to push, afterRun, handlerError,
// cancel, timeout, and error to record system-wide counters for job
// enqueue, completion, failure, retry, cancellation, timeout, and storage
// errors.
//
// For per-execution tracing and metrics scoped to a single handler
// invocation, see the middleware package: middleware.Tracing() and
// middleware.Metrics(). This package instead counts lifecycle outcomes
// reported on the shared event.Bus, so a single Metrics can observe every
// job type an engine handles without being wired into the middleware
// chain.
package observability
