// Package cache provides a short-lived, in-memory TTL cache for backend
// resource snapshots (GetResources results; health is not cached). The
// selection policy in internal/backend does not use it and calls
// GetResources directly. It is grounded on internal/provider/model_cache.go's
// ModelCache in the teacher repository this project started from: the same
// expiry check, refresh-on-miss, and stale-fallback-on-error behavior,
// narrowed to an in-memory map since resource snapshots are per-process and
// never need to survive a restart the way cached model lists do.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taskflow/pipelinectl/internal/backend"
)

// entry is one cached resource snapshot.
type entry struct {
	resources *backend.Resources
	expiresAt time.Time
}

// ResourceCache caches backend.Resources snapshots per backend name for TTL,
// falling back to a stale entry if a refresh fails.
type ResourceCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	logger  zerolog.Logger
}

// New returns a ResourceCache whose entries expire after ttl.
func New(ttl time.Duration) *ResourceCache {
	return &ResourceCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		logger:  log.Logger,
	}
}

// Get returns the cached snapshot for b if it is still fresh, fetching
// (and caching) a new one via b.GetResources otherwise. If the refresh
// fails and a stale entry exists, the stale entry is returned instead of
// the error, mirroring the teacher's "expired cache beats no cache" policy.
func (c *ResourceCache) Get(ctx context.Context, b backend.ResourceReporter, name string) (*backend.Resources, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()

	if ok && time.Now().Before(e.expiresAt) {
		return e.resources, nil
	}

	fresh, err := b.GetResources(ctx)
	if err != nil {
		if ok {
			c.logger.Warn().Err(err).Str("backend", name).Msg("resource refresh failed, using stale cache")
			return e.resources, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[name] = entry{resources: fresh, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return fresh, nil
}

// Invalidate drops the cached entry for name, forcing the next Get to
// refetch.
func (c *ResourceCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}
