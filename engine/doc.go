// Package engine is the JobQueue: the run loop, handler registry, lease
// supervisor, and cooperative-cancellation coordinator that drives job
// execution against a job.Store.
//
// # Building an Engine
//
//	eng, err := engine.New(pgStore,
//	    engine.WithConcurrency(20),
//	    engine.WithBackoff(backoff.NewExponentialWithJitter(time.Second, time.Minute)),
//	    engine.WithThrottle(throttle.New(map[string]throttle.Config{
//	        "send-email": {RatePerSecond: 50, Burst: 10},
//	    })),
//	    engine.WithMiddleware(middleware.Logging(logger)),
//	)
//
// Open builds an Engine directly from a storage URI, resolving the scheme
// through the same registry job.Open uses.
//
// # Registering Handlers
//
//	err := eng.Handle("send-email", engine.HandlerOptions{Concurrency: 10},
//	    func(ctx context.Context, j *job.Job, onCancel engine.OnCancel) ([]byte, error) {
//	        return nil, sendEmail(j.Message)
//	    })
//
// HandleTyped/EnqueueTyped add a JSON-marshaled generic payload type T on
// top of Handle/Enqueue's raw []byte Message, for callers that don't want
// to marshal by hand at every call site.
//
// # Enqueuing and Canceling
//
//	j, saved, err := eng.Enqueue(ctx, "send-email", payload, "api-server", job.WithPriority(5))
//	canceled, err := eng.Cancel(ctx, job.CancelKey{ID: j.ID})
//
// Push takes an already-constructed *job.Job (built with job.New) instead
// of assembling one from Enqueue's arguments; Proxy curries a job type and
// client into a ProxyFunc for repeated enqueues of the same kind of work.
//
// # Lifecycle
//
// Start begins the run loop, lease supervisor, and (when Config.TTL is
// positive, the default) reaper in background goroutines; a Notifier, if
// installed, adds a fourth. Pause stops claiming new work without tearing
// down running jobs; Stop cancels running jobs' onCancel listeners and
// blocks until every supervisor goroutine exits, using errgroup to wait
// on all of them. Events returns the engine's event.Bus for subscribing
// to lifecycle events (push, beforeRun, afterRun, handlerError, cancel,
// timeout, error) — see the event and observability packages.
//
// The reaper deletes terminal jobs (completed, expired, canceled, or
// exhausted-and-failed) whose Modified timestamp is older than Config.TTL,
// along with their logs and result, on a fixed one-minute cadence plus an
// immediate pass on Start. Set Config.TTL to zero to disable it.
//
// # Options
//
//   - [WithConfig] — override the default Config (concurrency, timeout, poll sleeps, TTL)
//   - [WithConcurrency] — shorthand for the Config.Concurrency field alone
//   - [WithBackoff] — set the retry backoff strategy consulted on handler error
//   - [WithThrottle] — install a per-job-type dispatch rate limiter
//   - [WithMiddleware] — append middleware to the handler execution chain
//   - [WithNotifier] — install a push-side wake-up channel alongside polling
//   - [WithLogger] — set the *slog.Logger used for run-loop diagnostics
//   - [WithTracerProvider] / [WithMeterProvider] — set OpenTelemetry providers
//   - [WithWorkerID] — override the default hostname[pid] worker identity
package engine
