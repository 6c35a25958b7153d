package pipeline

import (
	"context"
	"time"

	"github.com/taskflow/pipelinectl/internal/execctx"
	"github.com/taskflow/pipelinectl/internal/resilience"
	"github.com/taskflow/pipelinectl/internal/task"
	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
)

// ChunkConfig is the external chunking concern spec.md §4.6 says the
// dispatcher merely consumes: Chunker splits a task into sub-tasks (each
// executed by the engine as an ordinary single task), and Reassemble - if
// supplied - combines the per-chunk results into one value. Without
// Reassemble, Dispatch returns the ordered slice of chunk results.
type ChunkConfig struct {
	Chunker     func(t *task.Task) []*task.Task
	Reassemble  func(chunkResults []any) any
}

func (c *ChunkConfig) shouldChunk(t *task.Task) bool {
	return c != nil && c.Chunker != nil && len(c.Chunker(t)) > 0
}

// Result is the uniform return value of Dispatch: exactly one of Pipeline
// (steps present, spec.md §2/§3) or Single (no steps - a lone backend call
// or a chunked-and-reassembled task, spec.md §4.6 points 2-3) is set.
type Result struct {
	Pipeline *execctx.PipelineResult
	Single   any
}

// Dispatch is the dispatcher entry point of spec.md §4.6: processTask. It
// chooses the DAG path, the sequential path, the chunked path, or a single
// retried backend call for task.
func (r *Runner) Dispatch(ctx context.Context, t *task.Task, progress ProgressFunc, listener pkgevents.Listener, chunkConfig *ChunkConfig) (*Result, error) {
	if t.IsPipeline() {
		if t.UsesDAG() {
			res, err := r.RunDAG(ctx, t, progress, listener)
			if err != nil {
				return nil, err
			}
			return &Result{Pipeline: res}, nil
		}
		res, err := r.RunSequential(ctx, t, progress, listener)
		if err != nil {
			return nil, err
		}
		return &Result{Pipeline: res}, nil
	}

	if chunkConfig.shouldChunk(t) {
		chunks := chunkConfig.Chunker(t)
		results := make([]any, len(chunks))
		for i, chunk := range chunks {
			val, err := r.executeSingle(ctx, chunk)
			if err != nil {
				return nil, err
			}
			results[i] = val
			reportProgress(progress, i+1, len(chunks))
		}
		if chunkConfig.Reassemble != nil {
			return &Result{Single: chunkConfig.Reassemble(results)}, nil
		}
		return &Result{Single: results}, nil
	}

	val, err := r.executeSingle(ctx, t)
	if err != nil {
		return nil, err
	}
	return &Result{Single: val}, nil
}

// executeSingle selects a backend for t and runs it through the retry
// loop, per spec.md §4.6 point 3 ("select backend, wrap in retry, execute
// once").
func (r *Runner) executeSingle(ctx context.Context, t *task.Task) (any, error) {
	b, err := r.registry.Select(ctx, t)
	if err != nil {
		return nil, newError(KindBackendSelection, err, "%s", err.Error())
	}

	retryCfg := resilience.RetryConfig{Attempts: 1, Backoff: resilience.BackoffFixed}
	if t.Retry != nil {
		retryCfg.Attempts = t.Retry.EffectiveAttempts()
		retryCfg.Delay = time.Duration(t.Retry.DelayMS) * time.Millisecond
		if t.Retry.Backoff == string(resilience.BackoffExponential) {
			retryCfg.Backoff = resilience.BackoffExponential
		}
	}

	val, _, err := resilience.Retry(ctx, retryCfg, nil, func(ctx context.Context) (any, error) {
		return b.Execute(ctx, t)
	})
	if err != nil {
		return nil, newError(KindStepExecution, err, "%s", err.Error())
	}
	return val, nil
}
