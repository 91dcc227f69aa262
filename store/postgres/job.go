package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joblet/joblet/id"
	"github.com/joblet/joblet/job"
)

const jobColumns = `
	id, type, unique_id, message, client, worker, recurring, timezone,
	status, retries, try, priority, scheduled, acquired, timeout, expire,
	completed, created, modified,
	stopwatch_waiting, stopwatch_running, stopwatch_completed`

// SaveJob inserts j by ID, or updates it if the ID already exists. If
// UniqueID is set and a non-terminal job under a different ID already
// holds it, saved is false and err is nil.
func (s *Store) SaveJob(ctx context.Context, j *job.Job) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22
		)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type, unique_id = EXCLUDED.unique_id,
			message = EXCLUDED.message, client = EXCLUDED.client,
			worker = EXCLUDED.worker, recurring = EXCLUDED.recurring,
			timezone = EXCLUDED.timezone, status = EXCLUDED.status,
			retries = EXCLUDED.retries, try = EXCLUDED.try,
			priority = EXCLUDED.priority, scheduled = EXCLUDED.scheduled,
			acquired = EXCLUDED.acquired, timeout = EXCLUDED.timeout,
			expire = EXCLUDED.expire, completed = EXCLUDED.completed,
			modified = EXCLUDED.modified,
			stopwatch_waiting = EXCLUDED.stopwatch_waiting,
			stopwatch_running = EXCLUDED.stopwatch_running,
			stopwatch_completed = EXCLUDED.stopwatch_completed`,
		j.ID.String(), j.Type, j.UniqueID, j.Message, j.Client, j.Worker, j.Recurring, j.Timezone,
		string(j.Status), j.Retries, j.Try, j.Priority, j.Scheduled, j.Acquired, j.Timeout, j.Expire,
		j.Completed, j.Created, j.Modified,
		j.Stopwatches.Waiting.Nanoseconds(), j.Stopwatches.Running.Nanoseconds(), j.Stopwatches.Completed.Nanoseconds(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}

		return false, fmt.Errorf("joblet/postgres: save job: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// FindJobByID is a point lookup. Returns nil, nil if absent.
func (s *Store) FindJobByID(ctx context.Context, jobID id.ID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("joblet/postgres: find job: %w", err)
	}

	return j, nil
}

// UpdateJobByID applies an unconditional patch and returns the post-image.
func (s *Store) UpdateJobByID(ctx context.Context, jobID id.ID, patch job.Patch) (*job.Job, error) {
	sets, args := buildPatchSet(patch, 2)
	if len(sets) == 0 {
		return s.FindJobByID(ctx, jobID)
	}

	query := "UPDATE jobs SET " + joinSets(sets) + " WHERE id = $1 RETURNING " + jobColumns
	args = append([]any{jobID.String()}, args...)

	row := s.pool.QueryRow(ctx, query, args...)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("joblet/postgres: update job: %w", err)
	}

	return j, nil
}

// CancelJob sets Status to StatusCanceled and bumps Modified. key.ID wins
// if both ID and UniqueID are set.
func (s *Store) CancelJob(ctx context.Context, key job.CancelKey) (*job.Job, error) {
	now := time.Now().UTC()

	var row pgx.Row

	switch {
	case !key.ID.IsNil():
		row = s.pool.QueryRow(ctx, `
			UPDATE jobs SET status = $2, modified = $3
			WHERE id = $1
			RETURNING `+jobColumns,
			key.ID.String(), string(job.StatusCanceled), now,
		)
	case key.UniqueID != "":
		row = s.pool.QueryRow(ctx, `
			UPDATE jobs SET status = $1, modified = $2
			WHERE id = (SELECT id FROM jobs WHERE unique_id = $3 ORDER BY created LIMIT 1)
			RETURNING `+jobColumns,
			string(job.StatusCanceled), now, key.UniqueID,
		)
	default:
		return nil, nil
	}

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("joblet/postgres: cancel job: %w", err)
	}

	return j, nil
}

// PollForRunnableJob atomically selects and claims the highest-priority
// runnable job of one of the given types, using FOR UPDATE SKIP LOCKED so
// concurrent pollers never contend for the same row.
func (s *Store) PollForRunnableJob(ctx context.Context, types []string, newTimeout time.Time, workerID string) (*job.Job, error) {
	now := time.Now().UTC()

	row := s.pool.QueryRow(ctx, `
		WITH candidate AS (
			SELECT id FROM jobs
			WHERE type = ANY($1)
			  AND scheduled <= $2
			  AND (
			      status = 'waiting'
			      OR (status = 'running' AND timeout IS NOT NULL AND timeout <= $2)
			      OR status = 'error'
			      OR (status = 'failed' AND recurring <> '')
			  )
			ORDER BY priority ASC, created ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs SET
			status = 'running', acquired = $2, timeout = $3, worker = $4,
			modified = $2, try = try + 1
		WHERE id IN (SELECT id FROM candidate)
		RETURNING `+jobColumns,
		types, now, newTimeout, workerID,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("joblet/postgres: poll for runnable job: %w", err)
	}

	return j, nil
}

// UpdateRunningJob applies patch only if the persisted row still matches
// lease. Returns nil, nil if the lease has been superseded.
func (s *Store) UpdateRunningJob(ctx context.Context, lease job.LeaseRef, patch job.Patch) (*job.Job, error) {
	sets, args := buildPatchSet(patch, 4)

	query := "UPDATE jobs SET " + joinSets(sets) +
		" WHERE id = $1 AND status = 'running' AND acquired = $2 AND timeout = $3 RETURNING " + jobColumns
	args = append([]any{lease.ID.String(), lease.Acquired, lease.Timeout}, args...)

	row := s.pool.QueryRow(ctx, query, args...)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("joblet/postgres: update running job: %w", err)
	}

	return j, nil
}

// buildPatchSet renders patch's non-nil fields as "col = $n" clauses,
// numbering placeholders starting at startArg. Double-pointer fields
// distinguish "leave untouched" (nil outer) from "set to nil" (non-nil
// outer wrapping a nil inner) the same way store/memory's applyPatch does.
func buildPatchSet(patch job.Patch, startArg int) ([]string, []any) {
	var (
		sets []string
		args []any
	)

	arg := startArg
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, arg))
		args = append(args, v)
		arg++
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Scheduled != nil {
		add("scheduled", *patch.Scheduled)
	}
	if patch.Acquired != nil {
		add("acquired", *patch.Acquired)
	}
	if patch.Timeout != nil {
		add("timeout", *patch.Timeout)
	}
	if patch.Expire != nil {
		add("expire", *patch.Expire)
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	if patch.Worker != nil {
		add("worker", *patch.Worker)
	}
	if patch.Try != nil {
		add("try", *patch.Try)
	}
	if patch.Modified != nil {
		add("modified", *patch.Modified)
	}
	if patch.Stopwatches != nil {
		add("stopwatch_waiting", patch.Stopwatches.Waiting.Nanoseconds())
		add("stopwatch_running", patch.Stopwatches.Running.Nanoseconds())
		add("stopwatch_completed", patch.Stopwatches.Completed.Nanoseconds())
	}

	return sets, args
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}

	return out
}

// WriteJobLog appends a log entry for jobID.
func (s *Store) WriteJobLog(ctx context.Context, jobType string, jobID id.ID, level job.LogLevel, message []byte) (*job.Log, error) {
	entry := &job.Log{
		ID:      id.NewLogID(),
		JobType: jobType,
		JobID:   jobID,
		Level:   level,
		Message: message,
		Created: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_logs (id, job_type, job_id, level, message, created)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID.String(), entry.JobType, entry.JobID.String(), string(entry.Level), entry.Message, entry.Created,
	)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: write job log: %w", err)
	}

	return entry, nil
}

// ReadJobLog returns entries for jobID ordered by Created ascending.
func (s *Store) ReadJobLog(ctx context.Context, jobID id.ID, skip, limit int) ([]*job.Log, error) {
	query := `
		SELECT id, job_type, job_id, level, message, created FROM job_logs
		WHERE job_id = $1 ORDER BY created ASC`
	args := []any{jobID.String()}

	if limit > 0 {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, limit, skip)
	} else if skip > 0 {
		query += " OFFSET $2"
		args = append(args, skip)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: read job log: %w", err)
	}
	defer rows.Close()

	var entries []*job.Log
	for rows.Next() {
		var (
			e        job.Log
			idStr    string
			jobIDStr string
			levelStr string
		)
		if err := rows.Scan(&idStr, &e.JobType, &jobIDStr, &levelStr, &e.Message, &e.Created); err != nil {
			return nil, fmt.Errorf("joblet/postgres: scan job log row: %w", err)
		}

		parsedID, err := id.ParseLogID(idStr)
		if err != nil {
			return nil, fmt.Errorf("joblet/postgres: parse log id %q: %w", idStr, err)
		}
		e.ID = parsedID

		parsedJobID, err := id.ParseJobID(jobIDStr)
		if err != nil {
			return nil, fmt.Errorf("joblet/postgres: parse job id %q: %w", jobIDStr, err)
		}
		e.JobID = parsedJobID
		e.Level = job.LogLevel(levelStr)

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("joblet/postgres: iterate job log rows: %w", err)
	}

	return entries, nil
}

// WriteJobResult writes the at-most-one result row for jobID.
func (s *Store) WriteJobResult(ctx context.Context, jobType string, jobID id.ID, message []byte) (*job.Result, error) {
	result := &job.Result{
		ID:      jobID,
		JobType: jobType,
		Message: message,
		Created: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_results (id, job_type, message, created) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET job_type = EXCLUDED.job_type, message = EXCLUDED.message, created = EXCLUDED.created`,
		result.ID.String(), result.JobType, result.Message, result.Created,
	)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: write job result: %w", err)
	}

	return result, nil
}

// ReadJobResult returns the result row for jobID, or nil, nil if none has
// been written.
func (s *Store) ReadJobResult(ctx context.Context, jobID id.ID) (*job.Result, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, job_type, message, created FROM job_results WHERE id = $1`, jobID.String())

	var (
		r     job.Result
		idStr string
	)
	if err := row.Scan(&idStr, &r.JobType, &r.Message, &r.Created); err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("joblet/postgres: read job result: %w", err)
	}

	parsedID, err := id.ParseJobID(idStr)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: parse job id %q: %w", idStr, err)
	}
	r.ID = parsedID

	return &r, nil
}

// ListFailedJobs returns terminally failed jobs, newest first by modified.
func (s *Store) ListFailedJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE status = $1 AND recurring = '' ORDER BY modified DESC"
	args := []any{string(job.StatusFailed)}
	argN := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, opts.Limit)
		argN++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, opts.Offset)
		argN++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: list failed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("joblet/postgres: scan failed job row: %w", err)
		}

		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("joblet/postgres: iterate failed job rows: %w", err)
	}

	return jobs, nil
}

// PruneExpired deletes every terminal job (completed, expired, canceled,
// or exhausted-and-failed) whose modified timestamp predates before,
// cascading to its logs and result inside one transaction since neither
// child table declares a foreign key. Returns the number of jobs removed.
func (s *Store) PruneExpired(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM jobs
		WHERE modified < $1
		  AND (status IN ('completed', 'expired', 'canceled')
		       OR (status = 'failed' AND recurring = ''))`, before)
	if err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: select: %w", err)
	}

	var ids []string
	for rows.Next() {
		var jobID string
		if scanErr := rows.Scan(&jobID); scanErr != nil {
			rows.Close()
			return 0, fmt.Errorf("joblet/postgres: prune expired: scan: %w", scanErr)
		}

		ids = append(ids, jobID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: iterate: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM job_logs WHERE job_id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: delete logs: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM job_results WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: delete results: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: delete jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("joblet/postgres: prune expired: commit: %w", err)
	}

	return len(ids), nil
}

// scanJob scans a single job row. Stopwatch columns are stored as BIGINT
// nanoseconds and converted back to time.Duration after scanning.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j                                            job.Job
		idStr, statusStr                             string
		waitingNs, runningNs, completedNs            int64
	)

	err := row.Scan(
		&idStr, &j.Type, &j.UniqueID, &j.Message, &j.Client, &j.Worker, &j.Recurring, &j.Timezone,
		&statusStr, &j.Retries, &j.Try, &j.Priority, &j.Scheduled, &j.Acquired, &j.Timeout, &j.Expire,
		&j.Completed, &j.Created, &j.Modified,
		&waitingNs, &runningNs, &completedNs,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(statusStr)
	j.Stopwatches = job.Stopwatches{
		Waiting:   time.Duration(waitingNs),
		Running:   time.Duration(runningNs),
		Completed: time.Duration(completedNs),
	}

	parsedID, err := id.ParseJobID(idStr)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: parse job id %q: %w", idStr, err)
	}
	j.ID = parsedID

	return &j, nil
}
