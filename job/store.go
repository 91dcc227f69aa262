package job

import (
	"context"
	"time"

	"github.com/joblet/joblet/id"
)

// LogLevel classifies a JobLog entry.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// Log is an append-only entry attached to a job's run history.
type Log struct {
	ID      id.ID    `json:"id"`
	JobType string   `json:"job_type"`
	JobID   id.ID    `json:"job_id"`
	Level   LogLevel `json:"level"`
	Message []byte   `json:"message"`
	Created time.Time `json:"created"`
}

// Result is the at-most-one outcome record for a job. Its ID equals the
// owning job's ID.
type Result struct {
	ID      id.ID     `json:"id"`
	JobType string    `json:"job_type"`
	Message []byte    `json:"message"`
	Created time.Time `json:"created"`
}

// Patch carries a partial update; nil pointer fields are left untouched
// by UpdateJobByID and UpdateRunningJob.
type Patch struct {
	Status    *Status
	Scheduled *time.Time
	Acquired  **time.Time
	Timeout   **time.Time
	Expire    **time.Time
	Completed **time.Time
	Worker    *string
	Try       *int
	Modified  *time.Time

	Stopwatches *Stopwatches
}

// CancelKey selects a job for CancelJob. ID wins when both are set.
type CancelKey struct {
	ID       id.ID
	UniqueID string
}

// ListOpts controls pagination for ListFailedJobs.
type ListOpts struct {
	// Limit caps the number of jobs returned. Zero means no limit.
	Limit int
	// Offset skips this many matching jobs, newest first, before
	// collecting results.
	Offset int
}

// Store is the persistence contract every backend must satisfy. Every
// method is atomic with respect to concurrent callers unless its doc
// comment says otherwise.
type Store interface {
	// SaveJob inserts or upserts by ID. If UniqueID is set and another
	// non-terminal job already holds it, saved is false and err is nil;
	// any other storage failure is returned as err.
	SaveJob(ctx context.Context, j *Job) (saved bool, err error)

	// FindJobByID is a point lookup. Returns nil, nil if absent.
	FindJobByID(ctx context.Context, jobID id.ID) (*Job, error)

	// UpdateJobByID applies an unconditional patch and returns the
	// post-image. Returns nil, nil if the job does not exist.
	UpdateJobByID(ctx context.Context, jobID id.ID, patch Patch) (*Job, error)

	// CancelJob sets Status to StatusCanceled and bumps Modified. Returns
	// nil, nil if no job matches key.
	CancelJob(ctx context.Context, key CancelKey) (*Job, error)

	// PollForRunnableJob atomically selects and claims the highest
	// priority runnable job of one of the given types, or returns
	// nil, nil if none is eligible. The selection predicate and claim
	// update are implemented by each backend (store/memory, store/postgres).
	PollForRunnableJob(ctx context.Context, types []string, newTimeout time.Time, workerID string) (*Job, error)

	// UpdateRunningJob applies patch only if the persisted row still
	// matches lease (status=running, acquired=lease.Acquired,
	// timeout=lease.Timeout). Returns nil, nil if the lease has been
	// superseded.
	UpdateRunningJob(ctx context.Context, lease LeaseRef, patch Patch) (*Job, error)

	// WriteJobLog appends a log entry for jobID.
	WriteJobLog(ctx context.Context, jobType string, jobID id.ID, level LogLevel, message []byte) (*Log, error)

	// ReadJobLog returns entries for jobID ordered by Created ascending.
	ReadJobLog(ctx context.Context, jobID id.ID, skip, limit int) ([]*Log, error)

	// WriteJobResult writes the at-most-one result row for jobID.
	WriteJobResult(ctx context.Context, jobType string, jobID id.ID, message []byte) (*Result, error)

	// ReadJobResult returns the result row for jobID, or nil, nil if none
	// has been written.
	ReadJobResult(ctx context.Context, jobID id.ID) (*Result, error)

	// ListFailedJobs returns terminally failed jobs (StatusFailed,
	// non-recurring — Fail always rearms a recurring job to StatusWaiting
	// instead), newest first by Modified, for dead-letter inspection.
	ListFailedJobs(ctx context.Context, opts ListOpts) ([]*Job, error)

	// PruneExpired deletes every terminal job (see Job.IsTerminal) whose
	// Modified timestamp predates before, along with its logs and result.
	// Returns the number of jobs removed. Backs the engine's TTL reaper.
	PruneExpired(ctx context.Context, before time.Time) (int, error)
}
