// Package dlq provides dead-letter inspection and replay for jobs whose
// retry budget is exhausted. It introduces no storage collection of its
// own: a terminally failed job already lives in job.Store's jobs
// collection under StatusFailed, so Service operates directly on it.
//
//	svc := dlq.NewService(store)
//	failed, err := svc.List(ctx, job.ListOpts{Limit: 50})
//	replayed, err := svc.Replay(ctx, failed[0].ID)
//
// Replay resets a job back to StatusWaiting with Try zeroed and
// Scheduled set to now, so the engine's next poll claims it as a fresh
// attempt with a clean retry budget.
package dlq
