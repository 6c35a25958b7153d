// Package backend defines the Backend abstraction the pipeline engine
// consumes (spec.md §3, §6), plus the process-wide registry and health-aware
// selection policy (spec.md §4.2). It is grounded on the Registry pattern of
// internal/provider/models.go in the teacher repository this project started
// from, adapted so re-registering a name replaces rather than errors, since
// that is spec.md §4.2's explicit contract.
package backend

import (
	"context"
	"time"

	"github.com/taskflow/pipelinectl/internal/task"
)

// GPU describes one GPU device as reported by Resources.
type GPU struct {
	Name      string `json:"name"`
	VRAM      int64  `json:"vram"`
	Available bool   `json:"available"`
}

// MemoryPool reports total/available capacity for RAM or VRAM.
type MemoryPool struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
}

// Resources is the optional getResources() result of spec.md §6.
type Resources struct {
	GPUs []GPU      `json:"gpus"`
	RAM  MemoryPool `json:"ram"`
	VRAM MemoryPool `json:"vram"`
}

// HasAvailableGPU reports whether at least one GPU in the pool is
// available, used by the selection policy's GPU-aware preference.
func (r *Resources) HasAvailableGPU() bool {
	if r == nil {
		return false
	}
	for _, g := range r.GPUs {
		if g.Available {
			return true
		}
	}
	return false
}

// Status is the result of Backend.getStatus (spec.md §6); consumed by the
// surrounding HTTP surface, not by the engine itself.
type Status struct {
	ID       string  `json:"id"`
	State    string  `json:"status"`
	Result   any     `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

// Backend is the polymorphic execution handle the engine consumes
// (spec.md §3, §6). Execute and IsHealthy are the only methods the engine's
// core scheduling code calls directly; Cancel and GetResources are optional
// capabilities the engine detects with a type assertion, following the
// interface-segregation idiom this repository's example pack uses for
// storage backends (tombee/conductor's internal/controller/backend).
type Backend interface {
	Name() string
	Execute(ctx context.Context, t *task.Task) (any, error)
	GetStatus(ctx context.Context, id string) (*Status, error)
	IsHealthy(ctx context.Context) bool
}

// Canceler is the optional cancel(id) capability of spec.md §6.
type Canceler interface {
	Cancel(ctx context.Context, id string) (bool, error)
}

// ResourceReporter is the optional getResources() capability of spec.md §6.
type ResourceReporter interface {
	GetResources(ctx context.Context) (*Resources, error)
}

// VersionedBackend is an optional capability: a backend that declares the
// minimum engine API version it requires, checked against EngineVersion at
// registration time via a semver constraint. This supplements spec.md's
// registry with the kind of capability-negotiation hook a real multi-backend
// deployment needs when backends and engine ship independently.
type VersionedBackend interface {
	MinEngineVersion() string
}

func isHealthy(ctx context.Context, b Backend) (healthy bool) {
	defer func() {
		// A panicking health check is treated as unhealthy, mirroring
		// spec.md §4.2's "a backend whose health check throws is treated as
		// unhealthy and skipped."
		if r := recover(); r != nil {
			healthy = false
		}
	}()
	return b.IsHealthy(ctx)
}

// selectTimeout bounds the context shared by every health and resource
// check made during one selection, so backends that honour ctx cannot stall
// the policy beyond it.
const selectTimeout = 2 * time.Second
