package observability_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/event"
	"github.com/joblet/joblet/id"
	"github.com/joblet/joblet/job"
	"github.com/joblet/joblet/observability"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}

	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64] data type", name)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatalf("%s: no data points recorded", name)
	}

	return sum.DataPoints[0].Value
}

func newTestJob(status job.Status) *job.Job {
	return &job.Job{
		ID:     id.NewJobID(),
		Type:   "send-email",
		Status: status,
	}
}

func TestMetrics_Push(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.Push, newTestJob(job.StatusWaiting))

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.enqueued"); got != 1 {
		t.Errorf("joblet.job.enqueued = %d, want 1", got)
	}
}

func TestMetrics_AfterRun_Completed(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.AfterRun, newTestJob(job.StatusCompleted))

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.completed"); got != 1 {
		t.Errorf("joblet.job.completed = %d, want 1", got)
	}
}

func TestMetrics_AfterRun_RecurringRearm(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	j := newTestJob(job.StatusWaiting)
	j.Recurring = "@every 1h"

	bus.Emit(event.AfterRun, j)

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.completed"); got != 1 {
		t.Errorf("joblet.job.completed = %d, want 1 for a recurring job rearmed to waiting", got)
	}
}

func TestMetrics_AfterRun_NonRecurringWaitingIsNotCounted(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.AfterRun, newTestJob(job.StatusWaiting))

	rm := collectMetrics(t, reader)
	if got := findMetric(rm, "joblet.job.completed"); got != nil {
		t.Errorf("expected no joblet.job.completed data points for a non-recurring waiting job")
	}
}

func TestMetrics_AfterRun_Failed(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.AfterRun, newTestJob(job.StatusFailed))

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.failed"); got != 1 {
		t.Errorf("joblet.job.failed = %d, want 1", got)
	}
}

func TestMetrics_AfterRun_Error(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.AfterRun, newTestJob(job.StatusError))

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.retried"); got != 1 {
		t.Errorf("joblet.job.retried = %d, want 1", got)
	}
}

func TestMetrics_HandlerError(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.HandlerError, &joblet.HandlerError{JobType: "send-email", JobID: "job_1", Err: context.DeadlineExceeded})

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.handler_errors"); got != 1 {
		t.Errorf("joblet.job.handler_errors = %d, want 1", got)
	}
}

func TestMetrics_Cancel(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.Cancel, newTestJob(job.StatusCanceled))

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.canceled"); got != 1 {
		t.Errorf("joblet.job.canceled = %d, want 1", got)
	}
}

func TestMetrics_Timeout(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.Timeout, newTestJob(job.StatusRunning))

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.job.timed_out"); got != 1 {
		t.Errorf("joblet.job.timed_out = %d, want 1", got)
	}
}

func TestMetrics_StorageError(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsWithMeter(mp.Meter("test"))
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.Error, &joblet.StorageError{Op: "pollForRunnableJob", Err: context.DeadlineExceeded})

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "joblet.store.errors"); got != 1 {
		t.Errorf("joblet.store.errors = %d, want 1", got)
	}
}

func TestMetrics_DefaultNoopSafe(t *testing.T) {
	// Calling NewMetrics without a global provider should not panic.
	m := observability.NewMetrics()
	bus := event.NewBus()
	m.Attach(bus)

	bus.Emit(event.Push, newTestJob(job.StatusWaiting))
}
