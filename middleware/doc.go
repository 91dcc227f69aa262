// Package middleware provides composable middleware for job execution.
// Middleware wraps handler calls synchronously and can modify execution
// (recover from panics, inject tracing, log, enforce a deadline, etc.).
//
// A [Middleware] wraps a [Handler]. Middleware are composed into a chain
// with [Chain] and applied right-to-left: the first middleware in the
// slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// The engine builds its own chain from WithMiddleware/WithTracerProvider/
// WithMeterProvider options rather than exposing Chain directly to
// callers; see engine.Engine.
//
// # Built-in Middleware
//
//   - [Logging] — logs job type, ID, try, and outcome at each execution
//   - [Recover] — catches handler panics and converts them to errors
//   - [Timeout] — sets the handler context's deadline to the job's lease timeout
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-execution duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
