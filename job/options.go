package job

import "time"

// buildOpts accumulates New's optional construction parameters before
// the scheduled-time computation rule is applied.
type buildOpts struct {
	uniqueID  string
	recurring string
	timezone  string
	retries   int
	priority  int
	scheduled time.Time
	delay     time.Duration
	expire    *time.Time
}

func defaultBuildOpts() buildOpts {
	return buildOpts{
		timezone: "UTC",
		retries:  2,
	}
}

// Option configures a Job at construction time via New.
type Option func(*buildOpts)

// WithUniqueID sets the cross-queue dedup key. A job sharing an existing
// non-terminal job's UniqueID is rejected by Store.SaveJob.
func WithUniqueID(id string) Option {
	return func(o *buildOpts) { o.uniqueID = id }
}

// WithRecurring sets a cron expression. On terminal non-error outcomes the
// job re-arms instead of completing.
func WithRecurring(expr string) Option {
	return func(o *buildOpts) { o.recurring = expr }
}

// WithTimezone sets the timezone used to evaluate Recurring. Defaults to
// "UTC".
func WithTimezone(tz string) Option {
	return func(o *buildOpts) { o.timezone = tz }
}

// WithRetries sets the maximum number of additional attempts after the
// first. Defaults to 2.
func WithRetries(n int) Option {
	return func(o *buildOpts) { o.retries = n }
}

// WithPriority sets the dispatch priority. Lower values run first.
// Defaults to 0.
func WithPriority(p int) Option {
	return func(o *buildOpts) { o.priority = p }
}

// WithScheduled pins the earliest allowed start time explicitly.
func WithScheduled(t time.Time) Option {
	return func(o *buildOpts) { o.scheduled = t }
}

// WithDelay pushes the earliest allowed start time out by d relative to
// whatever Scheduled would otherwise resolve to (now, or the first
// recurrence). Composes with WithScheduled and WithRecurring per the
// max(scheduled, now+delay) rule.
func WithDelay(d time.Duration) Option {
	return func(o *buildOpts) { o.delay = d }
}

// WithExpire sets the hard deadline past which the job is abandoned
// rather than dispatched.
func WithExpire(t time.Time) Option {
	return func(o *buildOpts) { o.expire = &t }
}
