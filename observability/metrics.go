package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/event"
	"github.com/joblet/joblet/job"
)

// meterName is the instrumentation scope name for joblet's bus-driven
// metrics.
const meterName = "github.com/joblet/joblet/observability"

// Metrics records system-wide job lifecycle counters from an engine's
// event.Bus. Unlike middleware.Metrics, which measures one handler
// invocation, Metrics observes the outcomes the run loop reports for
// every job type an engine handles: enqueue, completion, failure, retry,
// cancellation, lease timeout, and storage errors. The failure counter
// reads afterRun; engine.Engine moves a job with no retries left to
// StatusFailed in its poll step without emitting afterRun, so those jobs
// are not counted there.
type Metrics struct {
	enqueued      metric.Int64Counter
	completed     metric.Int64Counter
	failed        metric.Int64Counter
	retried       metric.Int64Counter
	canceled      metric.Int64Counter
	timedOut      metric.Int64Counter
	handlerErrors metric.Int64Counter
	storageErrors metric.Int64Counter
}

// NewMetrics builds Metrics using the global OTel MeterProvider. If none
// is configured, noop instruments are used and Attach's listeners become
// inert counters.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter builds Metrics using the provided meter. This
// variant allows injecting a specific MeterProvider for testing.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.enqueued, _ = meter.Int64Counter(
		"joblet.job.enqueued",
		metric.WithDescription("Total number of jobs pushed to the store"),
		metric.WithUnit("{job}"),
	)
	m.completed, _ = meter.Int64Counter(
		"joblet.job.completed",
		metric.WithDescription("Total number of jobs that reached a completed state"),
		metric.WithUnit("{job}"),
	)
	m.failed, _ = meter.Int64Counter(
		"joblet.job.failed",
		metric.WithDescription("Total number of jobs that exhausted their retries"),
		metric.WithUnit("{job}"),
	)
	m.retried, _ = meter.Int64Counter(
		"joblet.job.retried",
		metric.WithDescription("Total number of handler errors that left a job eligible for another attempt"),
		metric.WithUnit("{job}"),
	)
	m.canceled, _ = meter.Int64Counter(
		"joblet.job.canceled",
		metric.WithDescription("Total number of jobs canceled by a client"),
		metric.WithUnit("{job}"),
	)
	m.timedOut, _ = meter.Int64Counter(
		"joblet.job.timed_out",
		metric.WithDescription("Total number of leases the lease supervisor found timed out"),
		metric.WithUnit("{job}"),
	)
	m.handlerErrors, _ = meter.Int64Counter(
		"joblet.job.handler_errors",
		metric.WithDescription("Total number of handler invocations that returned an error"),
		metric.WithUnit("{error}"),
	)
	m.storageErrors, _ = meter.Int64Counter(
		"joblet.store.errors",
		metric.WithDescription("Total number of job.Store operations that returned an error"),
		metric.WithUnit("{error}"),
	)

	return m
}

// Attach registers Metrics' listeners on bus. Call it once per engine,
// any time before or after Start; the bus delivers events synchronously
// on the emitting goroutine.
func (m *Metrics) Attach(bus *event.Bus) {
	ctx := context.Background()

	bus.On(event.Push, func(payload any) {
		j, ok := payload.(*job.Job)
		if !ok {
			return
		}

		m.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("job_type", j.Type)))
	})

	bus.On(event.AfterRun, func(payload any) {
		j, ok := payload.(*job.Job)
		if !ok {
			return
		}

		attrs := metric.WithAttributes(attribute.String("job_type", j.Type))

		switch j.Status {
		case job.StatusCompleted:
			m.completed.Add(ctx, 1, attrs)
		case job.StatusWaiting:
			if j.IsRecurring() {
				m.completed.Add(ctx, 1, attrs)
			}
		case job.StatusFailed:
			m.failed.Add(ctx, 1, attrs)
		case job.StatusError:
			m.retried.Add(ctx, 1, attrs)
		}
	})

	bus.On(event.HandlerError, func(payload any) {
		herr, ok := payload.(*joblet.HandlerError)
		if !ok {
			return
		}

		m.handlerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("job_type", herr.JobType)))
	})

	bus.On(event.Cancel, func(payload any) {
		j, ok := payload.(*job.Job)
		if !ok {
			return
		}

		m.canceled.Add(ctx, 1, metric.WithAttributes(attribute.String("job_type", j.Type)))
	})

	bus.On(event.Timeout, func(payload any) {
		j, ok := payload.(*job.Job)
		if !ok {
			return
		}

		m.timedOut.Add(ctx, 1, metric.WithAttributes(attribute.String("job_type", j.Type)))
	})

	bus.On(event.Error, func(payload any) {
		serr, ok := payload.(*joblet.StorageError)
		if !ok {
			return
		}

		m.storageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", serr.Op)))
	})
}
