// Package cron computes the next occurrence of a cron expression for
// recurring jobs. It wraps robfig/cron/v3's parser and schedule types
// behind two exported functions: NextOccurrence, which the job lifecycle
// calls to schedule a recurring job, and Valid.
package cron

import (
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// parser supports standard 5-field cron and descriptors like "@every 30s".
var parser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]cronlib.Schedule)
)

// getOrParse caches parsed cron expressions; a job's recurrence is
// evaluated on every completion, so re-parsing per call would otherwise
// dominate the cost of a busy recurring workload.
func getOrParse(expr string) (cronlib.Schedule, error) {
	cacheMu.RLock()
	sched, ok := cache[expr]
	cacheMu.RUnlock()

	if ok {
		return sched, nil
	}

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[expr] = sched
	cacheMu.Unlock()

	return sched, nil
}

// NextOccurrence returns the next instant expr fires strictly after from,
// evaluated in the named IANA timezone. An empty tz is treated as UTC.
func NextOccurrence(expr string, tz string, from time.Time) (time.Time, error) {
	sched, err := getOrParse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("cron: parse %q: %w", expr, err)
	}

	loc := time.UTC

	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("cron: load timezone %q: %w", tz, err)
		}

		loc = l
	}

	return sched.Next(from.In(loc)), nil
}

// Valid reports whether expr parses as a valid cron expression.
func Valid(expr string) bool {
	_, err := getOrParse(expr)

	return err == nil
}
