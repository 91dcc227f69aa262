// Package throttle provides a per-job-type rate limit the engine consults
// when choosing which job types to poll for, before any job is claimed,
// independent of the per-handler
// concurrency counter the engine already enforces.
package throttle

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config bounds the sustained and burst dispatch rate for one job type.
type Config struct {
	// RatePerSecond is the maximum sustained dispatch rate. Zero disables
	// rate limiting for the type.
	RatePerSecond float64

	// Burst is the token bucket burst size. Defaults to 1 if RatePerSecond
	// is set but Burst is zero.
	Burst int
}

// Throttle holds a token-bucket limiter per job type. The zero value is a
// valid, unrestricted Throttle. Safe for concurrent use.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Throttle configured with the given per-type limits.
// Types not listed are never throttled.
func New(configs map[string]Config) *Throttle {
	t := &Throttle{limiters: make(map[string]*rate.Limiter, len(configs))}

	for jobType, cfg := range configs {
		if cfg.RatePerSecond <= 0 {
			continue
		}

		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}

		t.limiters[jobType] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return t
}

// Allow reports whether a job of the given type may be dispatched right
// now. A type with no configured limit is always allowed.
func (t *Throttle) Allow(jobType string) bool {
	if t == nil {
		return true
	}

	t.mu.Lock()
	limiter, ok := t.limiters[jobType]
	t.mu.Unlock()

	if !ok {
		return true
	}

	return limiter.Allow()
}

// SetLimit dynamically installs or replaces the limit for jobType.
func (t *Throttle) SetLimit(jobType string, cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limiters == nil {
		t.limiters = make(map[string]*rate.Limiter)
	}

	if cfg.RatePerSecond <= 0 {
		delete(t.limiters, jobType)

		return
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	t.limiters[jobType] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
}
