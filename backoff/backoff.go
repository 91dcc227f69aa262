// Package backoff computes how long a failed job waits before it becomes
// runnable again. job.Job.Error calls Strategy.Delay(j.Try) once per
// handler error and adds the result to the failure time to get the job's
// next Scheduled value — the job stays invisible to pollForRunnableJob
// until that instant passes, however many retries remain. Strategies are
// stateless and safe for concurrent use across every worker sharing a
// store.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the wait before a job's next retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n, where n is
	// job.Job.Try at the moment the handler failed (1 on the first retry
	// after the initial attempt).
	Delay(attempt int) time.Duration
}

// Constant schedules every retry the same fixed interval after failure,
// regardless of how many attempts have already been spent.
type Constant struct {
	Interval time.Duration
}

// NewConstant returns a Strategy that always waits Interval.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns Interval, ignoring attempt.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear grows the wait in proportion to the attempt count, capped at Max.
// A job on its fifth retry with Initial=1s waits 5s; Max stops that growth
// from running away on a job with a generous retry budget.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear returns a Strategy whose delay grows as Initial*attempt, capped
// at maxDelay. maxDelay <= 0 disables the cap.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial*attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential doubles the wait on every attempt, capped at Max. This is the
// shape to reach for when a handler failure usually means a downstream
// dependency is overloaded or recovering — each retry backs further off
// than the last instead of adding a fixed amount.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential returns a Strategy whose delay grows as
// Initial*2^(attempt-1), capped at maxDelay. maxDelay <= 0 disables the cap.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial*2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ExponentialWithJitter is Exponential with full jitter: the returned delay
// is drawn uniformly from [0, cap], where cap is what Exponential would
// have returned for the same attempt. This is the strategy engine.New
// installs by default, since a store shared by many workers otherwise sees
// every failed job of a type retry in lockstep and re-fail together.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter returns a jittered exponential Strategy with the
// given initial delay and cap. maxDelay <= 0 disables the cap.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial*2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	ceiling := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && ceiling > float64(e.Max) {
		ceiling = float64(e.Max)
	}
	return time.Duration(rand.Float64() * ceiling) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// DefaultStrategy returns the Strategy engine.New installs when no
// WithBackoff option is given: full-jitter exponential backoff starting at
// 1s and capped at 1m.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 1*time.Minute)
}
