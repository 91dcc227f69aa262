package job

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/joblet/joblet"
)

// OpenFunc constructs a Store from a parsed storage URI.
type OpenFunc func(ctx context.Context, uri *url.URL) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]OpenFunc)
)

// RegisterBackend associates a URI scheme with a Store constructor.
// Reference backends register themselves from an init function; RegisterBackend
// panics on a duplicate scheme, since that is always a build-time
// programming error rather than a runtime condition.
func RegisterBackend(scheme string, open OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, exists := backends[scheme]; exists {
		panic(fmt.Sprintf("job: backend already registered for scheme %q", scheme))
	}

	backends[scheme] = open
}

// Open selects a backend by the URI's scheme and constructs a Store from it.
func Open(ctx context.Context, rawURI string) (Store, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("job: parse storage uri: %w", err)
	}

	backendsMu.RLock()
	open, ok := backends[u.Scheme]
	backendsMu.RUnlock()

	if !ok {
		return nil, &joblet.ConfigError{Reason: fmt.Sprintf("no backend registered for storage uri scheme %q", u.Scheme)}
	}

	return open(ctx, u)
}
