// Package notify defines the optional wake-up notification contract the
// engine uses to shorten idle-poll latency: when Push persists a new
// waiting job, the engine calls Notifier.Publish so any worker process
// sleeping through idleSleep can skip straight to a poll instead of
// waiting out the rest of its sleep window.
//
// A Notifier is advisory only. Engines that construct one without a
// Notifier still find every job through pollForRunnableJob on the next
// tick; a Notifier only affects latency, never correctness.
package notify

import "context"

// Notifier fans out a "a job of this type may now be runnable" signal.
type Notifier interface {
	// Publish signals that a job of jobType was just made runnable; the
	// engine calls it from Push only. Implementations must not block
	// the caller for longer than it takes to enqueue the signal.
	Publish(ctx context.Context, jobType string) error

	// Listen returns a channel that receives a job type each time
	// Publish is called for it, across any process sharing this
	// Notifier's backend. The channel is closed when ctx is done.
	Listen(ctx context.Context) (<-chan string, error)

	// Close releases the Notifier's resources.
	Close() error
}
