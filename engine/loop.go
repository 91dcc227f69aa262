package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/joblet/joblet"
	"github.com/joblet/joblet/event"
	"github.com/joblet/joblet/job"
)

// runLoop is the single-threaded cooperative polling loop described in
// the JobQueue run-loop contract: it checks the global concurrency cap,
// computes runnable types, polls once, routes the claimed job to expire,
// fail, or dispatch, then sleeps before the next tick.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.loopDone)

	for {
		if e.stopping() || ctx.Err() != nil {
			return
		}

		if runState(e.state.Load()) == statePaused {
			e.sleep(e.config.IdleSleep)
			continue
		}

		foundJob := e.tick(ctx)

		if e.stopping() {
			return
		}

		if foundJob {
			e.sleep(e.config.ActiveSleep)
		} else {
			e.sleep(e.config.IdleSleep)
		}
	}
}

func (e *Engine) stopping() bool {
	select {
	case <-e.stopRequested:
		return true
	default:
		return false
	}
}

// tick runs one iteration of the run loop's polling steps and reports
// whether a job was claimed.
func (e *Engine) tick(ctx context.Context) bool {
	if int(e.running.Load()) >= e.config.Concurrency {
		return false
	}

	runnable := e.runnableTypes()
	if len(runnable) == 0 {
		return false
	}

	claimed, err := e.poll(ctx, runnable)
	if err != nil {
		e.bus.Emit(event.Error, &joblet.StorageError{Op: "pollForRunnableJob", Err: err})
		return false
	}

	if claimed == nil {
		return false
	}

	now := time.Now().UTC()

	switch {
	case claimed.HasExpired(now):
		if err := claimed.Expire(ctx, e.store, now); err != nil {
			e.bus.Emit(event.Error, &joblet.StorageError{Op: "expire", Err: err})
		}
	case !claimed.CanRetry():
		if err := claimed.Fail(ctx, e.store, now); err != nil {
			e.bus.Emit(event.Error, &joblet.StorageError{Op: "fail", Err: err})
		}
	default:
		e.run(ctx, claimed)
	}

	return true
}

// runnableTypes narrows the registry's runnable job types by the
// configured throttle, so a type without spare token-bucket capacity is
// excluded from the poll itself rather than claimed and dropped.
func (e *Engine) runnableTypes() []string {
	types := e.reg.runnableTypes()
	if e.throttle == nil {
		return types
	}

	allowed := types[:0:0]
	for _, t := range types {
		if e.throttle.Allow(t) {
			allowed = append(allowed, t)
		}
	}

	return allowed
}

// poll computes the claim's new lease timeout and delegates to storage.
func (e *Engine) poll(ctx context.Context, types []string) (*job.Job, error) {
	newTimeout := time.Now().UTC().Add(e.config.Timeout)

	return e.store.PollForRunnableJob(ctx, types, newTimeout, e.worker)
}

// run dispatches a claimed job to its handler concurrently, tracking it
// in runningJobs and the per-type/global running counters for the
// duration of the invocation.
func (e *Engine) run(ctx context.Context, j *job.Job) {
	handler, ok := e.reg.get(j.Type)
	if !ok {
		e.bus.Emit(event.Error, &joblet.StorageError{Op: "dispatch", Err: errNoHandler(j.Type)})
		return
	}

	e.bus.Emit(event.BeforeRun, j)

	e.running.Add(1)
	handler.running.Add(1)

	rj := &runningJob{lease: j.Lease(), job: j}

	e.runningMu.Lock()
	e.runningJobs[j.ID.String()] = rj
	e.runningMu.Unlock()

	go e.execute(ctx, j, handler, rj)
}

// execute invokes the middleware chain and handler for j, then applies
// the appropriate lifecycle transition based on the outcome and whether
// the lease was canceled or superseded while running.
func (e *Engine) execute(ctx context.Context, j *job.Job, handler *handlerEntry, rj *runningJob) {
	defer e.finishRun(j, handler)

	onCancel := func(listener func()) {
		if listener == nil {
			return
		}

		e.runningMu.Lock()
		rj.listeners = append(rj.listeners, listener)
		e.runningMu.Unlock()
	}

	var (
		result []byte
		herr   error
	)

	terminal := func(hctx context.Context) error {
		var err error
		result, err = handler.fn(hctx, j, onCancel)

		return err
	}

	herr = e.mw(ctx, j, terminal)

	now := time.Now().UTC()

	if herr != nil {
		e.bus.Emit(event.HandlerError, &joblet.HandlerError{JobType: j.Type, JobID: j.ID.String(), Err: herr})

		if err := j.Error(ctx, e.store, now, herr, e.backoff); err != nil {
			e.bus.Emit(event.Error, &joblet.StorageError{Op: "error", Err: err})
		}

		return
	}

	e.runningMu.Lock()
	canceled := rj.canceled
	e.runningMu.Unlock()

	if canceled {
		return
	}

	if j.HasError() {
		return
	}

	if err := j.Complete(ctx, e.store, now, result); err != nil {
		if _, lost := err.(*joblet.LeaseLost); lost {
			return
		}

		e.bus.Emit(event.Error, &joblet.StorageError{Op: "complete", Err: err})
	}
}

func (e *Engine) finishRun(j *job.Job, handler *handlerEntry) {
	e.runningMu.Lock()
	delete(e.runningJobs, j.ID.String())
	e.runningMu.Unlock()

	handler.running.Add(-1)
	e.running.Add(-1)

	e.bus.Emit(event.AfterRun, j)
}

// leaseSupervisor fires on a 1 Hz cadence, canceling any runningJobs
// entry whose lease has passed its timeout.
func (e *Engine) leaseSupervisor(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopRequested:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepExpiredLeases()
		}
	}
}

func (e *Engine) sweepExpiredLeases() {
	now := time.Now().UTC()

	e.runningMu.Lock()
	var timedOut []*job.Job
	for _, rj := range e.runningJobs {
		if !rj.canceled && !rj.lease.Timeout.IsZero() && !rj.lease.Timeout.After(now) {
			timedOut = append(timedOut, rj.job)
		}
	}
	e.runningMu.Unlock()

	for _, j := range timedOut {
		listeners, ok := e.markCanceled(j.ID.String())
		if !ok {
			continue
		}

		for _, l := range listeners {
			e.invokeListener(l)
		}

		e.bus.Emit(event.Timeout, j)
		e.logger.Debug("job lease timed out", slog.String("job_id", j.ID.String()), slog.String("job_type", j.Type))
	}
}

// notifyListener relays a configured Notifier's wake-ups into the run
// loop's idle sleep, so a Push elsewhere shortens IdleSleep instead of
// leaving the loop to wait out the full window before its next poll. It
// runs for the lifetime of the engine once started with a Notifier
// installed; ctx.Done or stopRequested ends it.
func (e *Engine) notifyListener(ctx context.Context) {
	ch, err := e.notifier.Listen(ctx)
	if err != nil {
		e.logger.Warn("notify listen failed", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-e.stopRequested:
			return
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}

			select {
			case e.wake <- struct{}{}:
			default:
			}
		}
	}
}

// reaperInterval is how often reaperSupervisor sweeps for expired terminal
// jobs. Coarser than leaseSupervisor's 1 Hz cadence since eviction has no
// latency requirement, only an eventual-cleanup one.
const reaperInterval = time.Minute

// reaperSupervisor deletes terminal jobs older than config.TTL on a fixed
// cadence, enforcing the storage-level retention window jobs, their logs,
// and their results are otherwise kept under indefinitely. It runs only
// when config.TTL is positive.
func (e *Engine) reaperSupervisor(ctx context.Context) {
	e.reap(ctx)

	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopRequested:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reap(ctx)
		}
	}
}

func (e *Engine) reap(ctx context.Context) {
	before := time.Now().UTC().Add(-e.config.TTL)

	n, err := e.store.PruneExpired(ctx, before)
	if err != nil {
		e.bus.Emit(event.Error, &joblet.StorageError{Op: "pruneExpired", Err: err})
		return
	}

	if n > 0 {
		e.logger.Debug("pruned expired jobs", slog.Int("count", n), slog.Time("before", before))
	}
}

type errNoHandlerType string

func (e errNoHandlerType) Error() string { return "engine: no handler registered for type " + string(e) }

func errNoHandler(jobType string) error { return errNoHandlerType(jobType) }
