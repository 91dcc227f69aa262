// Package local provides an in-process Notifier for single-worker
// deployments and tests, where no cross-process wake-up is needed.
package local

import (
	"context"
	"sync"

	"github.com/joblet/joblet/notify"
)

// Notifier fans out job-type signals to in-process listeners over
// buffered channels. It satisfies notify.Notifier.
type Notifier struct {
	mu     sync.Mutex
	subs   map[chan string]struct{}
	closed bool
}

// New creates an in-process Notifier.
func New() *Notifier {
	return &Notifier{subs: make(map[chan string]struct{})}
}

// Publish sends jobType to every active listener without blocking; a
// listener that is not ready to receive misses the signal, which is safe
// because it is only a latency optimization.
func (n *Notifier) Publish(_ context.Context, jobType string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	for ch := range n.subs {
		select {
		case ch <- jobType:
		default:
		}
	}

	return nil
}

// Listen registers a new listener channel, unregistered when ctx is done.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 8)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()

		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Close makes later Publish calls send nothing; Listen channels already
// handed out stay open until their own context is done.
func (n *Notifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	return nil
}

var _ notify.Notifier = (*Notifier)(nil)
