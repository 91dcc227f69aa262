package job

import (
	"time"

	"github.com/joblet/joblet/cron"
	"github.com/joblet/joblet/id"
)

// New constructs a job.Job in StatusWaiting from client inputs. now is the
// caller's notion of the current time, threaded through explicitly so
// tests can pin it.
//
// Scheduled is computed by the rule: an explicit WithScheduled wins;
// otherwise a Recurring expression seeds it via cron.NextOccurrence; a
// WithDelay then pushes it out to max(scheduled|now, now+delay).
func New(now time.Time, jobType string, message []byte, client string, opts ...Option) (*Job, error) {
	o := defaultBuildOpts()
	for _, opt := range opts {
		opt(&o)
	}

	scheduled := o.scheduled
	if scheduled.IsZero() && o.recurring != "" {
		next, err := cron.NextOccurrence(o.recurring, o.timezone, now)
		if err != nil {
			return nil, err
		}

		scheduled = next
	}

	if o.delay > 0 {
		base := scheduled
		if base.IsZero() || base.Before(now) {
			base = now
		}

		delayed := now.Add(o.delay)
		if delayed.After(base) {
			scheduled = delayed
		} else {
			scheduled = base
		}
	}

	if scheduled.IsZero() {
		scheduled = now
	}

	return &Job{
		ID:        id.NewJobID(),
		Type:      jobType,
		UniqueID:  o.uniqueID,
		Message:   message,
		Client:    client,
		Recurring: o.recurring,
		Timezone:  o.timezone,
		Status:    StatusWaiting,
		Retries:   o.retries,
		Priority:  o.priority,
		Scheduled: scheduled,
		Expire:    o.expire,
		Created:   now,
		Modified:  now,
	}, nil
}
