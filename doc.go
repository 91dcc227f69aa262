// Package joblet provides a distributed, persistent job queue. Any number
// of client processes push jobs into a shared backing store; any number of
// worker processes poll the store, lease runnable jobs under an atomic
// claim, execute a registered handler per job type, and record the outcome.
//
// # Quick Start
//
//	q, err := engine.New(pgStore,
//	    engine.WithConfig(joblet.DefaultConfig()),
//	    engine.WithConcurrency(20),
//	)
//	q.Handle("send-email", engine.HandlerOptions{}, func(ctx context.Context, j *job.Job, onCancel engine.OnCancel) ([]byte, error) {
//	    return nil, sendEmail(j.Message)
//	})
//	q.Start(context.Background())
//
// # Architecture
//
// joblet follows a single storage-contract abstraction (job.Store) with
// two reference backends: store/memory for tests and single-process
// development, and store/postgres for a real relational deployment. Job
// identity, recurrence, backoff, throttling, and observability are all
// separate packages the engine composes; a single backend need only
// satisfy job.Store.
package joblet
