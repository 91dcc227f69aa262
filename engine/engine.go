// Package engine implements the JobQueue: a single-threaded cooperative
// polling loop that claims runnable jobs from a job.Store, dispatches them
// to registered handlers under a per-type concurrency cap, and supervises
// their leases so a timed-out job can be cooperatively canceled and
// reclaimed by another poll.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/backoff"
	"github.com/joblet/joblet/event"
	"github.com/joblet/joblet/job"
	"github.com/joblet/joblet/middleware"
	"github.com/joblet/joblet/notify"
	"github.com/joblet/joblet/throttle"
)

// runState tracks the engine's lifecycle phase. Zero value is stateIdle:
// no loop goroutines started yet.
type runState int32

const (
	stateIdle runState = iota
	stateRunning
	statePaused
	stateStopping
	stateStopped
)

// runningJob tracks one in-flight handler invocation for the lease
// supervisor and for cooperative cancel from Cancel or Stop.
type runningJob struct {
	lease     job.LeaseRef
	job       *job.Job
	canceled  bool
	listeners []func()
}

// Engine is a JobQueue instance: one worker process's view of a shared
// job.Store, plus the in-process handler registry, run loop, and lease
// supervisor.
type Engine struct {
	store  job.Store
	config joblet.Config
	worker string

	reg *registry

	bus      *event.Bus
	throttle *throttle.Throttle
	notifier notify.Notifier
	logger   *slog.Logger
	backoff  backoff.Strategy
	mw       middleware.Middleware

	middlewares []middleware.Middleware

	runningMu   sync.Mutex
	runningJobs map[string]*runningJob

	running atomic.Int32
	state   atomic.Int32

	stopRequested chan struct{}
	loopDone      chan struct{}
	wake          chan struct{}
	supervisors   *errgroup.Group
}

// New constructs an Engine bound to store. The engine does not begin
// polling until Start is called.
func New(store job.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, joblet.ErrNoStore
	}

	e := &Engine{
		store:       store,
		config:      joblet.DefaultConfig(),
		worker:      defaultWorkerID(),
		reg:         newRegistry(),
		bus:         event.NewBus(),
		logger:      slog.Default(),
		backoff:     backoff.DefaultStrategy(),
		runningJobs: make(map[string]*runningJob),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.mw = middleware.Chain(e.middlewares...)
	e.state.Store(int32(stateIdle))

	return e, nil
}

// Open selects a job.Store backend by uri's scheme via job.Open, then
// constructs an Engine from it.
func Open(ctx context.Context, uri string, opts ...Option) (*Engine, error) {
	store, err := job.Open(ctx, uri)
	if err != nil {
		return nil, err
	}

	return New(store, opts...)
}

// Events returns the engine's event bus. Callers register listeners with
// On before or after Start; Emit is engine-internal.
func (e *Engine) Events() *event.Bus { return e.bus }

// Handle installs at most one handler per jobType. A duplicate
// registration returns *joblet.ConfigError.
func (e *Engine) Handle(jobType string, opts HandlerOptions, fn HandlerFunc) error {
	if err := e.reg.register(jobType, opts, fn); err != nil {
		return err
	}

	e.bus.Emit(event.Handle, jobType)

	return nil
}

// Push persists j via SaveJob and returns true on insert, false when
// j.UniqueID collided with an existing non-terminal job. Any other
// storage failure is wrapped in *joblet.StorageError.
func (e *Engine) Push(ctx context.Context, j *job.Job) (bool, error) {
	saved, err := e.store.SaveJob(ctx, j)
	if err != nil {
		return false, &joblet.StorageError{Op: "saveJob", Err: err}
	}

	if !saved {
		return false, nil
	}

	e.bus.Emit(event.Push, j)

	if e.notifier != nil {
		if pubErr := e.notifier.Publish(ctx, j.Type); pubErr != nil {
			e.logger.Warn("notify publish failed", slog.String("job_type", j.Type), slog.String("error", pubErr.Error()))
		}
	}

	return true, nil
}

// Enqueue builds a job.Job via job.New and Pushes it, returning the built
// job alongside Push's insert/duplicate result.
func (e *Engine) Enqueue(ctx context.Context, jobType string, message []byte, client string, opts ...job.Option) (*job.Job, bool, error) {
	j, err := job.New(time.Now().UTC(), jobType, message, client, opts...)
	if err != nil {
		return nil, false, err
	}

	saved, err := e.Push(ctx, j)

	return j, saved, err
}

// ProxyFunc is a partially-applied Enqueue for one job type and client,
// returned by Proxy.
type ProxyFunc func(ctx context.Context, message []byte, opts ...job.Option) (*job.Job, bool, error)

// Proxy returns a function that pushes jobs of jobType on behalf of
// client, applying defaults before any per-call opts.
func (e *Engine) Proxy(jobType, client string, defaults ...job.Option) ProxyFunc {
	return func(ctx context.Context, message []byte, opts ...job.Option) (*job.Job, bool, error) {
		merged := make([]job.Option, 0, len(defaults)+len(opts))
		merged = append(merged, defaults...)
		merged = append(merged, opts...)

		return e.Enqueue(ctx, jobType, message, client, merged...)
	}
}

// Cancel marks the job identified by key as canceled and signals any
// in-process lease holder to stop cooperatively. Returns nil, nil if no
// job matched key.
func (e *Engine) Cancel(ctx context.Context, key job.CancelKey) (*job.Job, error) {
	canceled, err := e.store.CancelJob(ctx, key)
	if err != nil {
		return nil, &joblet.StorageError{Op: "cancelJob", Err: err}
	}

	if canceled == nil {
		return nil, nil
	}

	e.signalCancel(canceled.ID.String())
	e.bus.Emit(event.Cancel, canceled)

	return canceled, nil
}

// signalCancel marks the runningJobs entry for jobID canceled, if present,
// and invokes its registered listeners. Safe to call for a jobID with no
// active lease.
func (e *Engine) signalCancel(jobID string) {
	listeners, ok := e.markCanceled(jobID)
	if !ok {
		return
	}

	for _, l := range listeners {
		e.invokeListener(l)
	}
}

// markCanceled flips the canceled flag on the runningJobs entry for id,
// returning a copy of its listener list. ok is false if id has no active
// entry or was already canceled.
func (e *Engine) markCanceled(id string) (listeners []func(), ok bool) {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()

	rj, exists := e.runningJobs[id]
	if !exists || rj.canceled {
		return nil, false
	}

	rj.canceled = true

	return append([]func(){}, rj.listeners...), true
}

func (e *Engine) invokeListener(l func()) {
	defer func() {
		if r := recover(); r != nil {
			e.bus.Emit(event.Error, &joblet.HandlerError{Err: errFromRecover(r)})
		}
	}()

	l()
}

func errFromRecover(r any) error {
	if err, ok := r.(error); ok {
		return err
	}

	return errors.New("panic in cancel listener")
}

// Start begins the polling loop if the engine is idle or paused; it is a
// no-op if already running. Emits start.
func (e *Engine) Start(ctx context.Context) {
	switch runState(e.state.Load()) {
	case stateRunning:
		return
	case statePaused:
		e.state.Store(int32(stateRunning))
		e.bus.Emit(event.Start, nil)

		return
	}

	e.stopRequested = make(chan struct{})
	e.loopDone = make(chan struct{})
	e.state.Store(int32(stateRunning))

	eg := &errgroup.Group{}
	e.supervisors = eg

	eg.Go(func() error {
		e.runLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		e.leaseSupervisor(ctx)
		return nil
	})
	if e.config.TTL > 0 {
		eg.Go(func() error {
			e.reaperSupervisor(ctx)
			return nil
		})
	}

	if e.notifier != nil {
		e.wake = make(chan struct{}, 1)

		eg.Go(func() error {
			e.notifyListener(ctx)
			return nil
		})
	}

	e.bus.Emit(event.Start, nil)
}

// Pause stops polling without disconnecting storage; running jobs finish
// or time out normally. Emits pause.
func (e *Engine) Pause() {
	if runState(e.state.Load()) != stateRunning {
		return
	}

	e.state.Store(int32(statePaused))
	e.bus.Emit(event.Pause, nil)
}

// Stop requests cancel for every currently running job, waits for the
// running counter to reach zero, closes the store if it implements
// io.Closer, and emits stop. Stop blocks until shutdown completes or ctx
// is done.
func (e *Engine) Stop(ctx context.Context) error {
	current := runState(e.state.Load())
	if current == stateIdle || current == stateStopped {
		return nil
	}

	e.state.Store(int32(stateStopping))
	close(e.stopRequested)

	e.runningMu.Lock()
	ids := make([]string, 0, len(e.runningJobs))
	for id := range e.runningJobs {
		ids = append(ids, id)
	}
	e.runningMu.Unlock()

	for _, id := range ids {
		e.signalCancel(id)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for e.running.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if e.supervisors != nil {
		_ = e.supervisors.Wait()
	}
	e.state.Store(int32(stateStopped))

	if closer, ok := e.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}

	e.bus.Emit(event.Disconnect, nil)
	e.bus.Emit(event.Stop, nil)

	return nil
}

// Wait blocks until the run loop has exited, either due to Stop or ctx
// cancellation of the goroutine that called Start.
func (e *Engine) Wait() {
	if e.loopDone != nil {
		<-e.loopDone
	}
}

// sleep waits out d, the idle or active poll interval, but returns early on
// shutdown or on a notifier wake-up (e.wake is nil, and so never selected,
// when no Notifier was configured).
func (e *Engine) sleep(d time.Duration) {
	if d <= 0 {
		runtime.Gosched()
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-e.stopRequested:
	case <-e.wake:
	}
}
