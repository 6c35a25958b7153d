// Package mock provides a deterministic, in-memory backend.Backend used by
// the pipeline engine's own test suites and by callers exercising the
// engine without a real execution backend. It is grounded on
// internal/provider's NewMockProvider in the teacher repository this
// project started from.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/task"
)

// Backend is a scriptable backend.Backend: each call to Execute can be made
// to sleep, fail a configured number of times before succeeding, or return
// a canned result computed from the task payload.
type Backend struct {
	mu sync.Mutex

	name    string
	healthy bool

	// Latency is applied (via context-aware sleep) before every Execute
	// returns.
	Latency time.Duration

	// FailuresBeforeSuccess causes Execute to fail this many times before
	// it starts succeeding - used by retry tests (spec.md §8 scenario 7).
	FailuresBeforeSuccess int
	attempts              int

	// Handler, if set, computes the result from the task; otherwise Execute
	// echoes the payload back under "echo".
	Handler func(t *task.Task) (any, error)

	resources *backend.Resources
}

// New constructs a healthy mock backend with the given name.
func New(name string) *Backend {
	return &Backend{name: name, healthy: true}
}

func (b *Backend) Name() string { return b.name }

// SetHealthy toggles the health flag returned by IsHealthy.
func (b *Backend) SetHealthy(h bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = h
}

// SetResources configures the value returned by GetResources.
func (b *Backend) SetResources(r *backend.Resources) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resources = r
}

func (b *Backend) IsHealthy(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthy
}

func (b *Backend) GetResources(ctx context.Context) (*backend.Resources, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resources == nil {
		return &backend.Resources{}, nil
	}
	return b.resources, nil
}

func (b *Backend) GetStatus(ctx context.Context, id string) (*backend.Status, error) {
	return &backend.Status{ID: id, State: "completed"}, nil
}

func (b *Backend) Execute(ctx context.Context, t *task.Task) (any, error) {
	if b.Latency > 0 {
		select {
		case <-time.After(b.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	b.attempts++
	shouldFail := b.attempts <= b.FailuresBeforeSuccess
	b.mu.Unlock()

	if shouldFail {
		return nil, fmt.Errorf("mock backend %q: simulated failure (attempt %d)", b.name, b.attempts)
	}

	if b.Handler != nil {
		return b.Handler(t)
	}
	return map[string]any{"echo": t.Payload}, nil
}

var _ backend.Backend = (*Backend)(nil)
var _ backend.ResourceReporter = (*Backend)(nil)
