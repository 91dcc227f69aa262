package job

import (
	"context"
	"time"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/backoff"
	"github.com/joblet/joblet/cron"
)

// Complete is invoked by the engine after a successful handler return,
// provided the lease is still valid. It rejects an already-terminal or
// timed-out job, computes Stopwatches, and either rearms a recurring job
// to StatusWaiting or completes it. If store reports the lease was
// superseded, it returns a *joblet.LeaseLost.
func (j *Job) Complete(ctx context.Context, store Store, now time.Time, result []byte) error {
	if j.IsComplete() {
		return &joblet.StateError{JobID: j.ID.String(), Reason: "already complete"}
	}

	if j.HasTimedOut(now) {
		return &joblet.StateError{JobID: j.ID.String(), Reason: "lease already timed out"}
	}

	stopwatches := computeStopwatches(j, now)

	patch := Patch{
		Modified:    &now,
		Stopwatches: &stopwatches,
	}

	if j.IsRecurring() {
		next, err := cron.NextOccurrence(j.Recurring, j.Timezone, now)
		if err != nil {
			return err
		}

		waiting := StatusWaiting
		zero := 0
		var nilTime *time.Time

		patch.Status = &waiting
		patch.Scheduled = &next
		patch.Acquired = &nilTime
		patch.Timeout = &nilTime
		patch.Try = &zero
	} else {
		completed := StatusCompleted
		nowCopy := now
		nowPtr := &nowCopy
		var nilTime *time.Time

		patch.Status = &completed
		patch.Completed = &nowPtr
		patch.Timeout = &nilTime
	}

	updated, err := store.UpdateRunningJob(ctx, j.Lease(), patch)
	if err != nil {
		return err
	}

	if updated == nil {
		return &joblet.LeaseLost{JobID: j.ID.String()}
	}

	*j = *updated

	if result != nil && !j.IsRecurring() {
		if _, err := store.WriteJobResult(ctx, j.Type, j.ID, result); err != nil {
			return err
		}
	}

	return nil
}

func computeStopwatches(j *Job, now time.Time) Stopwatches {
	var sw Stopwatches

	if j.Acquired != nil {
		sw.Waiting = j.Acquired.Sub(j.Scheduled)
		sw.Running = now.Sub(*j.Acquired)
	}

	sw.Completed = now.Sub(j.Scheduled)

	return sw
}

// Error records a handler failure: sets StatusError, computes the next
// retry's Scheduled time via strategy.Delay(j.Try) so a busy retry storm
// doesn't hammer pollForRunnableJob immediately, and appends an error log
// entry. The job remains eligible for re-claim once Scheduled elapses,
// provided retries remain.
func (j *Job) Error(ctx context.Context, store Store, now time.Time, handlerErr error, strategy backoff.Strategy) error {
	errStatus := StatusError
	scheduled := now.Add(strategy.Delay(j.Try))

	updated, err := store.UpdateJobByID(ctx, j.ID, Patch{
		Status:    &errStatus,
		Scheduled: &scheduled,
		Modified:  &now,
	})
	if err != nil {
		return err
	}

	if updated != nil {
		*j = *updated
	}

	if _, logErr := store.WriteJobLog(ctx, j.Type, j.ID, LogLevelError, []byte(handlerErr.Error())); logErr != nil {
		return logErr
	}

	return nil
}

// Fail promotes an exhausted job to StatusFailed. try is decremented by
// one to undo the increment PollForRunnableJob applied when reclaiming
// the StatusError row, so the persisted count reflects the true number of
// attempts consumed at the moment failure was decided. A recurring job is
// rearmed instead of left terminal.
func (j *Job) Fail(ctx context.Context, store Store, now time.Time) error {
	try := j.Try - 1
	if try < 0 {
		try = 0
	}

	patch := Patch{Modified: &now, Try: &try}

	if j.IsRecurring() {
		next, err := cron.NextOccurrence(j.Recurring, j.Timezone, now)
		if err != nil {
			return err
		}

		waiting := StatusWaiting
		zeroTry := 0
		var nilTime *time.Time

		patch.Status = &waiting
		patch.Scheduled = &next
		patch.Acquired = &nilTime
		patch.Timeout = &nilTime
		patch.Try = &zeroTry
	} else {
		failed := StatusFailed
		patch.Status = &failed
	}

	updated, err := store.UpdateJobByID(ctx, j.ID, patch)
	if err != nil {
		return err
	}

	if updated != nil {
		*j = *updated
	}

	return nil
}

// Expire terminally marks a job whose hard deadline passed before
// dispatch.
func (j *Job) Expire(ctx context.Context, store Store, now time.Time) error {
	expired := StatusExpired
	nowCopy := now
	nowPtr := &nowCopy

	updated, err := store.UpdateJobByID(ctx, j.ID, Patch{
		Status:    &expired,
		Completed: &nowPtr,
		Modified:  &now,
	})
	if err != nil {
		return err
	}

	if updated != nil {
		*j = *updated
	}

	return nil
}

// UpdateTimeout extends the job's current lease. Callable by a handler
// mid-run. Fails if the job is already complete or its lease has already
// timed out.
func (j *Job) UpdateTimeout(ctx context.Context, store Store, now time.Time, extension time.Duration) error {
	if j.IsComplete() {
		return &joblet.StateError{JobID: j.ID.String(), Reason: "already complete"}
	}

	if j.HasTimedOut(now) {
		return &joblet.StateError{JobID: j.ID.String(), Reason: "lease already timed out"}
	}

	newTimeout := now.Add(extension)
	newTimeoutPtr := &newTimeout

	updated, err := store.UpdateRunningJob(ctx, j.Lease(), Patch{
		Timeout:  &newTimeoutPtr,
		Modified: &now,
	})
	if err != nil {
		return err
	}

	if updated == nil {
		return &joblet.LeaseLost{JobID: j.ID.String()}
	}

	*j = *updated

	return nil
}

