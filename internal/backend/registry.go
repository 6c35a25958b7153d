package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/stoewer/go-strcase"

	"github.com/taskflow/pipelinectl/internal/task"
)

// EngineVersion is checked against any registered VersionedBackend's
// MinEngineVersion constraint at registration time.
const EngineVersion = "1.0.0"

// ErrKind enumerates the stable backend-selection error kinds of
// spec.md §7.
type ErrKind string

const (
	ErrNotRegistered ErrKind = "BackendNotRegistered"
	ErrUnhealthy     ErrKind = "BackendUnhealthy"
	ErrNoneAvailable ErrKind = "NoHealthyBackend"
)

// Error is the typed error the selection policy raises; its Error() string
// matches spec.md §6's stable error-code strings verbatim.
type Error struct {
	Kind ErrKind
	Name string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNotRegistered:
		return fmt.Sprintf("Backend %q not registered", e.Name)
	case ErrUnhealthy:
		return fmt.Sprintf("Backend %q is not healthy", e.Name)
	default:
		return "No healthy backend available"
	}
}

// normalizeName canonicalizes backend names for case-insensitive lookup,
// e.g. "AWS-Invoke" and "aws_invoke" register/resolve to the same entry.
func normalizeName(name string) string {
	return strcase.SnakeCase(name)
}

// Registry is the process-wide, concurrency-safe mapping from backend name
// to backend handle (spec.md §4.2, §5 "Shared resources"). It is grounded on
// internal/provider/models.go's Registry, adapted so Register replaces
// rather than errors on a duplicate name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	order    []string // insertion order, for selection's "first in insertion order" tie-break
}

// NewRegistry constructs an empty registry. Lazily-initialized maps would
// work too, but an explicit constructor matches this repository's
// convention for every other stateful component.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds or replaces the backend under its normalized Name().
// Re-registering a name replaces the prior entry (spec.md §4.2) and
// preserves that name's original insertion-order slot.
func (r *Registry) Register(b Backend) error {
	if vb, ok := b.(VersionedBackend); ok {
		if v := vb.MinEngineVersion(); v != "" {
			constraint, err := semver.NewConstraint(">=" + v)
			if err != nil {
				return fmt.Errorf("backend %q declares invalid min engine version %q: %w", b.Name(), v, err)
			}
			engineVersion, err := semver.NewVersion(EngineVersion)
			if err != nil {
				return fmt.Errorf("invalid engine version %q: %w", EngineVersion, err)
			}
			if !constraint.Check(engineVersion) {
				return fmt.Errorf("backend %q requires engine >=%s, have %s", b.Name(), v, EngineVersion)
			}
		}
	}

	name := normalizeName(b.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[name]; !exists {
		r.order = append(r.order, name)
	}
	r.backends[name] = b
	return nil
}

// Unregister removes a backend by name, if present.
func (r *Registry) Unregister(name string) {
	name = normalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the backend registered under name, if any.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[normalizeName(name)]
	return b, ok
}

// GetAll returns every registered backend in insertion order.
func (r *Registry) GetAll() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.backends[n])
	}
	return out
}

// Clear removes every registered backend. Intended for test teardown,
// mirroring the teacher's registries being reset between test cases.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = make(map[string]Backend)
	r.order = nil
}

// Select implements the selection policy of spec.md §4.2.
func (r *Registry) Select(ctx context.Context, t *task.Task) (Backend, error) {
	if r == nil {
		return nil, &Error{Kind: ErrNoneAvailable}
	}

	ctx, cancel := context.WithTimeout(ctx, selectTimeout)
	defer cancel()

	if t.Backend != "" && t.Backend != "auto" {
		b, ok := r.Get(t.Backend)
		if !ok {
			return nil, &Error{Kind: ErrNotRegistered, Name: t.Backend}
		}
		if !isHealthy(ctx, b) {
			return nil, &Error{Kind: ErrUnhealthy, Name: t.Backend}
		}
		return b, nil
	}

	healthy := make([]Backend, 0)
	for _, b := range r.GetAll() {
		if isHealthy(ctx, b) {
			healthy = append(healthy, b)
		}
	}
	if len(healthy) == 0 {
		return nil, &Error{Kind: ErrNoneAvailable}
	}

	if t.Resources.WantsGPU() {
		for _, b := range healthy {
			reporter, ok := b.(ResourceReporter)
			if !ok {
				continue
			}
			res, err := reporter.GetResources(ctx)
			if err != nil {
				continue
			}
			if res.HasAvailableGPU() {
				return b, nil
			}
		}
	}

	return healthy[0], nil
}
