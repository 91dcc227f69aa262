// Package memory provides a fully in-memory job.Store implementation.
// Safe for concurrent access. Intended for unit testing and single-process
// development; the registered "memory://" scheme discards its state on
// process exit.
package memory

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/joblet/joblet/id"
	"github.com/joblet/joblet/job"
)

var _ job.Store = (*Store)(nil)

// Store is a mutex-guarded, map-backed job.Store. Every method returns
// copies so callers can mutate the result without racing the store.
type Store struct {
	mu sync.RWMutex

	jobs    map[string]*job.Job
	logs    map[string][]*job.Log
	results map[string]*job.Result
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]*job.Job),
		logs:    make(map[string][]*job.Log),
		results: make(map[string]*job.Result),
	}
}

func init() {
	job.RegisterBackend("memory", func(_ context.Context, _ *url.URL) (job.Store, error) {
		return New(), nil
	})
}

// SaveJob inserts or upserts j by ID. If j.UniqueID is set and another
// non-terminal job already holds it, saved is false and err is nil.
func (s *Store) SaveJob(_ context.Context, j *job.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.UniqueID != "" {
		for key, existing := range s.jobs {
			if key == j.ID.String() {
				continue
			}
			if existing.UniqueID == j.UniqueID && !existing.IsTerminal() {
				return false, nil
			}
		}
	}

	cp := *j
	s.jobs[j.ID.String()] = &cp

	return true, nil
}

// FindJobByID is a point lookup.
func (s *Store) FindJobByID(_ context.Context, jobID id.ID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, nil
	}

	cp := *j

	return &cp, nil
}

// UpdateJobByID applies an unconditional patch and returns the post-image.
func (s *Store) UpdateJobByID(_ context.Context, jobID id.ID, patch job.Patch) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, nil
	}

	applyPatch(j, patch)

	cp := *j

	return &cp, nil
}

// CancelJob sets Status to StatusCanceled and bumps Modified. key.ID wins
// if both ID and UniqueID are set.
func (s *Store) CancelJob(_ context.Context, key job.CancelKey) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *job.Job

	if !key.ID.IsNil() {
		target = s.jobs[key.ID.String()]
	} else if key.UniqueID != "" {
		for _, j := range s.jobs {
			if j.UniqueID == key.UniqueID {
				target = j
				break
			}
		}
	}

	if target == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	target.Status = job.StatusCanceled
	target.Modified = now

	cp := *target

	return &cp, nil
}

// PollForRunnableJob atomically selects and claims the highest-priority
// runnable job of one of the given types.
func (s *Store) PollForRunnableJob(_ context.Context, types []string, newTimeout time.Time, workerID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	now := time.Now().UTC()

	var candidates []*job.Job
	for _, j := range s.jobs {
		if _, ok := typeSet[j.Type]; !ok {
			continue
		}
		if j.Scheduled.After(now) {
			continue
		}
		if !isRunnable(j, now) {
			continue
		}

		candidates = append(candidates, j)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority < candidates[k].Priority
		}

		return candidates[i].Created.Before(candidates[k].Created)
	})

	winner := candidates[0]

	acquired := now
	winner.Status = job.StatusRunning
	winner.Acquired = &acquired
	winner.Timeout = &newTimeout
	winner.Worker = workerID
	winner.Modified = now
	winner.Try++

	cp := *winner

	return &cp, nil
}

func isRunnable(j *job.Job, now time.Time) bool {
	switch {
	case j.Status == job.StatusWaiting:
		return true
	case j.Status == job.StatusRunning:
		return j.Timeout != nil && !j.Timeout.After(now)
	case j.Status == job.StatusError:
		return true
	case j.Status == job.StatusFailed:
		return j.IsRecurring()
	default:
		return false
	}
}

// UpdateRunningJob applies patch only if the persisted row still matches
// lease. Returns nil, nil if the lease has been superseded.
func (s *Store) UpdateRunningJob(_ context.Context, lease job.LeaseRef, patch job.Patch) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[lease.ID.String()]
	if !ok {
		return nil, nil
	}

	if j.Status != job.StatusRunning {
		return nil, nil
	}

	if j.Acquired == nil || !j.Acquired.Equal(lease.Acquired) {
		return nil, nil
	}

	if j.Timeout == nil || !j.Timeout.Equal(lease.Timeout) {
		return nil, nil
	}

	applyPatch(j, patch)

	cp := *j

	return &cp, nil
}

// applyPatch mutates j in place per the non-nil fields of patch. Double
// pointer fields distinguish "leave untouched" (nil outer) from "set to
// nil" (non-nil outer wrapping a nil inner).
func applyPatch(j *job.Job, patch job.Patch) {
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.Scheduled != nil {
		j.Scheduled = *patch.Scheduled
	}
	if patch.Acquired != nil {
		j.Acquired = *patch.Acquired
	}
	if patch.Timeout != nil {
		j.Timeout = *patch.Timeout
	}
	if patch.Expire != nil {
		j.Expire = *patch.Expire
	}
	if patch.Completed != nil {
		j.Completed = *patch.Completed
	}
	if patch.Worker != nil {
		j.Worker = *patch.Worker
	}
	if patch.Try != nil {
		j.Try = *patch.Try
	}
	if patch.Modified != nil {
		j.Modified = *patch.Modified
	}
	if patch.Stopwatches != nil {
		j.Stopwatches = *patch.Stopwatches
	}
}

// WriteJobLog appends a log entry for jobID.
func (s *Store) WriteJobLog(_ context.Context, jobType string, jobID id.ID, level job.LogLevel, message []byte) (*job.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &job.Log{
		ID:      id.NewLogID(),
		JobType: jobType,
		JobID:   jobID,
		Level:   level,
		Message: message,
		Created: time.Now().UTC(),
	}

	key := jobID.String()
	s.logs[key] = append(s.logs[key], entry)

	cp := *entry

	return &cp, nil
}

// ReadJobLog returns entries for jobID ordered by Created ascending.
func (s *Store) ReadJobLog(_ context.Context, jobID id.ID, skip, limit int) ([]*job.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[jobID.String()]

	sorted := make([]*job.Log, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, k int) bool {
		return sorted[i].Created.Before(sorted[k].Created)
	})

	if skip > 0 {
		if skip >= len(sorted) {
			return nil, nil
		}
		sorted = sorted[skip:]
	}

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]*job.Log, len(sorted))
	for i, e := range sorted {
		cp := *e
		out[i] = &cp
	}

	return out, nil
}

// WriteJobResult writes the at-most-one result row for jobID.
func (s *Store) WriteJobResult(_ context.Context, jobType string, jobID id.ID, message []byte) (*job.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &job.Result{
		ID:      jobID,
		JobType: jobType,
		Message: message,
		Created: time.Now().UTC(),
	}

	s.results[jobID.String()] = result

	cp := *result

	return &cp, nil
}

// ReadJobResult returns the result row for jobID, or nil, nil if none has
// been written.
func (s *Store) ReadJobResult(_ context.Context, jobID id.ID) (*job.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[jobID.String()]
	if !ok {
		return nil, nil
	}

	cp := *r

	return &cp, nil
}

// PruneExpired deletes every terminal job, along with its logs and result,
// whose Modified timestamp predates before. Returns the number of jobs
// removed.
func (s *Store) PruneExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for key, j := range s.jobs {
		if !j.IsTerminal() || !j.Modified.Before(before) {
			continue
		}

		delete(s.jobs, key)
		delete(s.logs, key)
		delete(s.results, key)
		removed++
	}

	return removed, nil
}

// ListFailedJobs returns terminally failed jobs, newest first by Modified.
func (s *Store) ListFailedJobs(_ context.Context, opts job.ListOpts) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*job.Job
	for _, j := range s.jobs {
		if j.Status == job.StatusFailed && !j.IsRecurring() {
			matched = append(matched, j)
		}
	}

	sort.Slice(matched, func(i, k int) bool {
		return matched[i].Modified.After(matched[k].Modified)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*job.Job, len(matched))
	for i, j := range matched {
		cp := *j
		out[i] = &cp
	}

	return out, nil
}
