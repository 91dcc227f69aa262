package job_test

import (
	"testing"
	"time"

	"github.com/joblet/joblet/job"
)

func TestNewDefaults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	j, err := job.New(now, "send-email", []byte("hi"), "host[1]")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if j.Status != job.StatusWaiting {
		t.Errorf("Status = %q, want %q", j.Status, job.StatusWaiting)
	}
	if j.Retries != 2 {
		t.Errorf("Retries = %d, want 2", j.Retries)
	}
	if j.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", j.Timezone)
	}
	if !j.Scheduled.Equal(now) {
		t.Errorf("Scheduled = %v, want %v", j.Scheduled, now)
	}
	if j.ID.IsNil() {
		t.Error("ID should not be nil")
	}
}

func TestNewExplicitScheduled(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	j, err := job.New(now, "t", nil, "c", job.WithScheduled(future))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !j.Scheduled.Equal(future) {
		t.Errorf("Scheduled = %v, want %v", j.Scheduled, future)
	}
}

func TestNewRecurringSeedsScheduled(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 3, 0, 0, time.UTC)

	j, err := job.New(now, "t", nil, "c", job.WithRecurring("*/5 * * * *"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)
	if !j.Scheduled.Equal(want) {
		t.Errorf("Scheduled = %v, want %v", j.Scheduled, want)
	}
}

func TestNewDelayPushesOutFromNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	j, err := job.New(now, "t", nil, "c", job.WithDelay(10*time.Minute))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := now.Add(10 * time.Minute)
	if !j.Scheduled.Equal(want) {
		t.Errorf("Scheduled = %v, want %v", j.Scheduled, want)
	}
}

func TestNewDelayComposesWithScheduled(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	explicit := now.Add(time.Minute)

	// delay pushes past the explicit scheduled time.
	j, err := job.New(now, "t", nil, "c", job.WithScheduled(explicit), job.WithDelay(time.Hour))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := now.Add(time.Hour)
	if !j.Scheduled.Equal(want) {
		t.Errorf("Scheduled = %v, want %v (delay should win)", j.Scheduled, want)
	}

	// delay smaller than explicit scheduled leaves scheduled untouched.
	j2, err := job.New(now, "t", nil, "c", job.WithScheduled(explicit), job.WithDelay(time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !j2.Scheduled.Equal(explicit) {
		t.Errorf("Scheduled = %v, want %v (explicit should win)", j2.Scheduled, explicit)
	}
}

func TestNewRecurringThenDelay(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 3, 0, 0, time.UTC)

	j, err := job.New(now, "t", nil, "c", job.WithRecurring("*/5 * * * *"), job.WithDelay(time.Hour))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := now.Add(time.Hour)
	if !j.Scheduled.Equal(want) {
		t.Errorf("Scheduled = %v, want %v", j.Scheduled, want)
	}
}

func TestPredicates(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	j, err := job.New(now, "t", nil, "c", job.WithRetries(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if j.IsComplete() {
		t.Error("fresh job should not be complete")
	}
	if j.HasTimedOut(now) {
		t.Error("fresh job has no timeout")
	}
	if !j.CanRetry() {
		t.Error("fresh job (try=0, retries=1) should be able to retry")
	}

	j.Try = 3
	if j.CanRetry() {
		t.Error("try=3 > retries+1=2 should not be able to retry")
	}
}
