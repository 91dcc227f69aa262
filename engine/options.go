package engine

import (
	"log/slog"
	"os"
	"strconv"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/backoff"
	"github.com/joblet/joblet/middleware"
	"github.com/joblet/joblet/notify"
	"github.com/joblet/joblet/throttle"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithConfig sets the full engine construction config in one call,
// overriding joblet.DefaultConfig.
func WithConfig(cfg joblet.Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithConcurrency overrides Config.Concurrency alone.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.config.Concurrency = n }
}

// WithLogger sets the *slog.Logger used for run-loop diagnostics. Defaults
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithBackoff sets the retry backoff strategy consulted when a handler
// error computes the job's next Scheduled retry time. Defaults to
// backoff.DefaultStrategy().
func WithBackoff(strategy backoff.Strategy) Option {
	return func(e *Engine) { e.backoff = strategy }
}

// WithMiddleware appends middleware to the chain every handler invocation
// runs through, innermost registration closest to the handler.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(e *Engine) { e.middlewares = append(e.middlewares, mw) }
}

// WithTracerProvider appends Tracing middleware bound to the given
// provider to the same chain as WithMiddleware, in option order:
// middleware from earlier options wraps it.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		tracer := tp.Tracer(tracerName)
		e.middlewares = append(e.middlewares, middleware.TracingWithTracer(tracer))
	}
}

// WithMeterProvider appends Metrics middleware bound to the given
// provider to the same chain as WithMiddleware, in option order:
// middleware from earlier options wraps it.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		meter := mp.Meter(tracerName)
		e.middlewares = append(e.middlewares, middleware.MetricsWithMeter(meter))
	}
}

// WithThrottle installs a per-job-type dispatch rate limiter consulted
// when computing each tick's runnable types, before pollForRunnableJob
// runs — a throttled type is excluded from the poll rather than claimed
// and left stranded.
func WithThrottle(t *throttle.Throttle) Option {
	return func(e *Engine) { e.throttle = t }
}

// WithNotifier installs an advisory wake-up Notifier. Push publishes to it
// on successful insert; the run loop listens on it to shorten idle sleeps.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithWorkerID overrides the process identifier recorded on claimed jobs.
// Defaults to "hostname[pid]".
func WithWorkerID(id string) Option {
	return func(e *Engine) { e.worker = id }
}

// tracerName is the instrumentation scope name used when Option-installed
// providers construct their own tracer/meter.
const tracerName = "github.com/joblet/joblet"

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return host + "[" + strconv.Itoa(os.Getpid()) + "]"
}
