package middleware

import (
	"context"
	"log/slog"

	"github.com/joblet/joblet/job"
)

// Timeout returns middleware that enforces the job's lease deadline as a
// context deadline. If the job has a lease timeout set, a
// context.WithDeadline wraps the handler call using that absolute
// instant, so a handler observing ctx.Done() is canceled at exactly the
// point the lease supervisor would otherwise consider it timed out.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout != nil {
			logger.Debug("job lease deadline set",
				slog.String("job_id", j.ID.String()),
				slog.Time("timeout", *j.Timeout),
			)

			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, *j.Timeout)
			defer cancel()
		}

		return next(ctx)
	}
}
