// Package job defines the Job entity, its lifecycle transitions, and the
// storage contract a backend must satisfy to host it.
package job

import (
	"time"

	"github.com/joblet/joblet/id"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	// StatusWaiting means the job is eligible for a future claim.
	StatusWaiting Status = "waiting"
	// StatusRunning means a worker currently holds a lease on the job.
	StatusRunning Status = "running"
	// StatusError means the last attempt's handler threw; the job remains
	// reclaimable while retries are available.
	StatusError Status = "error"
	// StatusFailed means retries are exhausted; terminal unless recurring.
	StatusFailed Status = "failed"
	// StatusCompleted means the job finished and is not recurring.
	StatusCompleted Status = "completed"
	// StatusExpired means the job's hard deadline passed before dispatch.
	StatusExpired Status = "expired"
	// StatusCanceled means a client explicitly canceled the job.
	StatusCanceled Status = "canceled"
	// StatusIgnore marks a job the engine should never poll again.
	StatusIgnore Status = "ignore"
)

// Stopwatches records the three durations computed on completion.
type Stopwatches struct {
	// Waiting is the time spent between scheduling and the winning claim.
	Waiting time.Duration `json:"waiting"`
	// Running is the time spent executing under the winning lease.
	Running time.Duration `json:"running"`
	// Completed is the total time from scheduling to completion.
	Completed time.Duration `json:"completed"`
}

// Job is the primary unit of work. Field names and semantics follow the
// storage contract in Store: every mutating method returns a new
// in-memory view built from the row Store reports back, never a locally
// guessed value.
type Job struct {
	ID       id.ID  `json:"id"`
	Type     string `json:"type"`
	UniqueID string `json:"unique_id,omitempty"`
	Message  []byte `json:"message"`
	Client   string `json:"client"`
	Worker   string `json:"worker,omitempty"`

	Recurring string `json:"recurring,omitempty"`
	Timezone  string `json:"timezone"`

	Status  Status `json:"status"`
	Retries int    `json:"retries"`
	Try     int    `json:"try"`

	// Priority: lower value runs first. Default 0.
	Priority int `json:"priority"`

	Scheduled time.Time  `json:"scheduled"`
	Acquired  *time.Time `json:"acquired,omitempty"`
	Timeout   *time.Time `json:"timeout,omitempty"`
	Expire    *time.Time `json:"expire,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Stopwatches Stopwatches `json:"stopwatches,omitempty"`
}

// LeaseRef identifies a specific claim so UpdateRunningJob can require it
// still be current before applying a patch.
type LeaseRef struct {
	ID       id.ID
	Acquired time.Time
	Timeout  time.Time
}

// Lease returns the LeaseRef for the job's current claim. Callers must
// check IsComplete/HasTimedOut before relying on it for a running lease.
func (j *Job) Lease() LeaseRef {
	var acquired, timeout time.Time
	if j.Acquired != nil {
		acquired = *j.Acquired
	}
	if j.Timeout != nil {
		timeout = *j.Timeout
	}

	return LeaseRef{ID: j.ID, Acquired: acquired, Timeout: timeout}
}

// IsComplete reports whether the job has reached a terminal, non-recurring
// completion state.
func (j *Job) IsComplete() bool {
	return j.Status == StatusCompleted || j.Status == StatusExpired || j.Status == StatusCanceled
}

// HasTimedOut reports whether the job's current lease has passed its
// timeout.
func (j *Job) HasTimedOut(now time.Time) bool {
	return j.Timeout != nil && !j.Timeout.After(now)
}

// HasExpired reports whether the job's hard deadline has passed.
func (j *Job) HasExpired(now time.Time) bool {
	return j.Expire != nil && !j.Expire.After(now)
}

// HasError reports whether the last recorded attempt ended in StatusError.
func (j *Job) HasError() bool {
	return j.Status == StatusError
}

// CanRetry reports whether the job has attempts remaining.
func (j *Job) CanRetry() bool {
	return j.Try <= j.Retries+1
}

// IsRecurring reports whether the job re-arms on terminal outcomes.
func (j *Job) IsRecurring() bool {
	return j.Recurring != ""
}

// IsTerminal reports whether the job has reached a state PruneExpired may
// eventually collect: complete, expired, canceled, or exhausted-and-failed.
// A failed recurring job does not satisfy this, since Fail rearms a
// recurring job to StatusWaiting instead of leaving it failed; a canceled
// or expired recurring job does.
func (j *Job) IsTerminal() bool {
	return j.IsComplete() || (j.Status == StatusFailed && !j.IsRecurring())
}
