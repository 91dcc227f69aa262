package dlq

import (
	"context"
	"time"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/id"
	"github.com/joblet/joblet/job"
)

// Service provides high-level dead-letter operations over a job.Store.
type Service struct {
	store job.Store
}

// NewService creates a dead-letter Service backed by store.
func NewService(store job.Store) *Service {
	return &Service{store: store}
}

// List returns terminally failed jobs matching opts, newest first.
func (s *Service) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	jobs, err := s.store.ListFailedJobs(ctx, opts)
	if err != nil {
		return nil, &joblet.StorageError{Op: "listFailedJobs", Err: err}
	}

	return jobs, nil
}

// Replay resets a failed job back to StatusWaiting with a zeroed try
// count and an immediate schedule, so the engine's next poll claims it
// as a fresh attempt. It returns *joblet.StateError if jobID is not
// currently in StatusFailed, and joblet.ErrJobNotFound if jobID does not
// exist.
func (s *Service) Replay(ctx context.Context, jobID id.ID) (*job.Job, error) {
	j, err := s.store.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, &joblet.StorageError{Op: "findJobByID", Err: err}
	}
	if j == nil {
		return nil, joblet.ErrJobNotFound
	}
	if j.Status != job.StatusFailed {
		return nil, &joblet.StateError{JobID: jobID.String(), Reason: "not in failed state"}
	}

	now := time.Now().UTC()
	waiting := job.StatusWaiting
	zero := 0
	var nilTime *time.Time

	updated, err := s.store.UpdateJobByID(ctx, jobID, job.Patch{
		Status:    &waiting,
		Scheduled: &now,
		Acquired:  &nilTime,
		Timeout:   &nilTime,
		Try:       &zero,
		Modified:  &now,
	})
	if err != nil {
		return nil, &joblet.StorageError{Op: "updateJobByID", Err: err}
	}
	if updated == nil {
		return nil, joblet.ErrJobNotFound
	}

	return updated, nil
}
