// Package pipeline is the public API for executing task pipelines
// programmatically, without going through the HTTP server or CLI. It
// wraps internal/pipeline.Runner behind a small functional-options
// constructor so embedding applications only need this package and
// internal/task/internal/backend's exported types. It is grounded on
// pkg/engine/run.go in the teacher repository this project started from,
// adapted from one-shot workflow-file execution to a reusable Runner over
// an explicit backend.Registry.
package pipeline

import (
	"context"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/pipeline"
	"github.com/taskflow/pipelinectl/internal/task"
	"github.com/taskflow/pipelinectl/pkg/events"
)

// Result is the dispatcher's outcome: Pipeline is set for a DAG/sequential
// task, Single for a plain backend call.
type Result = pipeline.Result

// Option configures a Runner.
type Option func(*pipeline.Runner)

// Runner executes single tasks and pipelines against a registry of
// backends.
type Runner struct {
	inner    *pipeline.Runner
	registry *backend.Registry
}

// New constructs a Runner backed by registry.
func New(registry *backend.Registry, opts ...Option) *Runner {
	inner := pipeline.New(pipeline.WithRegistry(registry))
	for _, opt := range opts {
		opt(inner)
	}
	return &Runner{inner: inner, registry: registry}
}

// Registry returns the backend registry this Runner was constructed with,
// so callers can register or unregister backends after construction.
func (r *Runner) Registry() *backend.Registry {
	return r.registry
}

// Run dispatches t to completion, optionally reporting progress and
// streaming events to listener. Either may be nil.
func (r *Runner) Run(ctx context.Context, t *task.Task, progress func(percent int), listener events.Listener) (*Result, error) {
	return r.inner.Dispatch(ctx, t, pipeline.ProgressFunc(progress), listener, nil)
}
