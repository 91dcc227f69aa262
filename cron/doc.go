// Package cron computes cron-expression occurrences for recurring jobs.
//
// A job's Recurring field holds a standard 5-field cron expression or a
// descriptor like "@every 30s"; NextOccurrence evaluates it against the
// job's Timezone (empty means UTC) to produce the job's next Scheduled
// time. There is no persisted cron-entry table and no leader election:
// job.New calls NextOccurrence to seed a recurring job's first run, and
// Job.Complete and Job.Fail call it to re-arm the job, so any worker
// process can compute the next run.
package cron
