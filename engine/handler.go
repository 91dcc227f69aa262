package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/job"
)

// OnCancel registers a listener the engine invokes when the running job's
// lease is about to be treated as lost: on lease timeout, on an explicit
// Cancel, or on Stop. Handlers observe cancellation cooperatively — the
// engine never forcibly terminates a handler goroutine.
type OnCancel func(listener func())

// HandlerFunc executes one job attempt. A non-nil result is stored as the
// job's JobResult when the job is not recurring. HandlerFunc must return
// promptly after a cancel listener fires; results returned after the
// lease is lost are discarded.
type HandlerFunc func(ctx context.Context, j *job.Job, onCancel OnCancel) (result []byte, err error)

// HandlerOptions configures a single handler registration.
type HandlerOptions struct {
	// Concurrency caps how many jobs of this type may run at once across
	// this engine instance. Defaults to 1.
	Concurrency int
}

type handlerEntry struct {
	fn          HandlerFunc
	concurrency int
	running     atomic.Int32
}

func (h *handlerEntry) isRunnable() bool {
	return h.running.Load() < int32(h.concurrency)
}

// registry maps job types to their registered handler. Safe for
// concurrent use; register (via Engine.Handle) is expected to be called
// during setup, get and runnableTypes on every run-loop tick.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]*handlerEntry
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]*handlerEntry)}
}

func (r *registry) register(jobType string, opts HandlerOptions, fn HandlerFunc) error {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[jobType]; exists {
		return joblet.NewHandlerExistsError(jobType)
	}

	r.handlers[jobType] = &handlerEntry{fn: fn, concurrency: concurrency}

	return nil
}

func (r *registry) get(jobType string) (*handlerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[jobType]

	return h, ok
}

// runnableTypes returns the job types whose handler has spare
// concurrency, i.e. is eligible to be dispatched on the next poll.
func (r *registry) runnableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))

	for jobType, h := range r.handlers {
		if h.isRunnable() {
			types = append(types, jobType)
		}
	}

	return types
}
