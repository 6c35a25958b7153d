package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/taskflow/pipelinectl/internal/events"
	"github.com/taskflow/pipelinectl/internal/execctx"
	"github.com/taskflow/pipelinectl/internal/task"
	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
)

// deadlockPollInterval is the tick-bounded sleep of spec.md §4.5 point 3 -
// long enough to avoid spinning the CPU, short enough that the scheduler
// notices newly-completed in-flight work promptly.
const deadlockPollInterval = 10 * time.Millisecond

// RunDAG implements the DAG pipeline runner of spec.md §4.5: readiness is
// computed synchronously each tick, every runnable step in a tick is
// dispatched concurrently and the whole batch is awaited before the next
// tick runs. The scheduler's own bookkeeping (the pending/running/completed
// sets, the results map, statuses) is touched only from this goroutine between ticks,
// so it needs no locking of its own - exactly the single-threaded
// cooperative model spec.md §5 describes.
func (r *Runner) RunDAG(ctx context.Context, t *task.Task, progress ProgressFunc, listener pkgevents.Listener) (*execctx.PipelineResult, error) {
	start := time.Now()

	total := len(t.Steps)
	ids := make([]string, total)
	stepByID := make(map[string]*task.Step, total)
	for i, step := range t.Steps {
		id := task.DefaultStepID(step, i)
		ids[i] = id
		stepByID[id] = step
	}

	pending := make(map[string]bool, total)
	for _, id := range ids {
		pending[id] = true
	}
	running := make(map[string]bool)
	completed := make(map[string]bool)

	results := make(map[string]any, total)
	statuses := make(map[string]*execctx.StepStatus, total)
	var parallelGroups [][]string

	for len(pending) > 0 || len(running) > 0 {
		runnable := findRunnable(ids, pending, running, completed, stepByID)

		if len(runnable) == 0 {
			if len(running) == 0 {
				unresolved := make([]string, 0, len(pending))
				for id := range pending {
					unresolved = append(unresolved, stepByID[id].Task)
				}
				return nil, deadlockError(unresolved)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(deadlockPollInterval):
			}
			continue
		}

		if len(runnable) > 1 {
			group := append([]string(nil), runnable...)
			parallelGroups = append(parallelGroups, group)
		}

		for _, id := range runnable {
			delete(pending, id)
			running[id] = true
		}

		type dispatched struct {
			id      string
			st      *execctx.StepStatus
			outcome stepOutcome
		}
		batch := make([]dispatched, len(runnable))

		var wg sync.WaitGroup
		for i, id := range runnable {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				step := stepByID[id]
				stepCtx := execctx.NewContext(t.Payload, results)

				st := &execctx.StepStatus{ID: id, Task: step.Task, Status: execctx.StatusRunning}
				now := time.Now()
				st.StartedAt = &now
				emitEvent(listener, events.StepStart(id, step.Task))

				outcome := r.executeStep(ctx, t, step, id, stepCtx)

				completedAt := time.Now()
				duration := completedAt.Sub(now)
				st.CompletedAt = &completedAt
				st.Duration = &duration
				st.Status = outcome.Status
				st.Result = outcome.Result
				st.Error = outcome.ErrText
				st.RetryAttempt = outcome.RetryAttempt

				// st and batch[i] are this goroutine's own slot - statuses itself
				// is only written back on the scheduler goroutine below, after
				// wg.Wait(), since a bare map is not safe for concurrent writes.
				batch[i] = dispatched{id: id, st: st, outcome: outcome}
			}(i, id)
		}
		wg.Wait()

		var abortErr error
		for _, d := range batch {
			delete(running, d.id)
			completed[d.id] = true
			results[d.id] = d.outcome.Result
			statuses[d.id] = d.st

			if d.outcome.Abort != nil {
				emitEvent(listener, events.StepError(d.id, stepByID[d.id].Task, d.outcome.Abort, false))
				if abortErr == nil {
					abortErr = d.outcome.Abort
				}
				continue
			}
			if d.outcome.ErrText != "" {
				emitEvent(listener, events.StepError(d.id, stepByID[d.id].Task, &Error{Kind: KindStepExecution, Message: d.outcome.ErrText}, true))
				continue
			}
			emitEvent(listener, events.StepComplete(d.id, stepByID[d.id].Task, d.outcome.Result))
		}

		if abortErr != nil {
			return nil, abortErr
		}

		reportProgress(progress, len(completed), total)
	}

	ordered := make([]any, total)
	orderedStatus := make([]*execctx.StepStatus, total)
	var finalResult any
	for i, id := range ids {
		ordered[i] = results[id]
		orderedStatus[i] = statuses[id]
		finalResult = results[id]
	}

	emitEvent(listener, events.PipelineComplete())

	return &execctx.PipelineResult{
		Steps:          ordered,
		StepResults:    results,
		StepStatus:     orderedStatus,
		FinalResult:    finalResult,
		TotalDuration:  time.Since(start),
		ParallelGroups: parallelGroups,
	}, nil
}

// findRunnable implements the readiness rule of spec.md §4.5: not already
// running/completed, and every dependsOn id is in completed (optional-step
// skips are recorded as completed, so dependents still run). Iterating ids
// in declared order rather than pending's map order keeps dispatch batches
// reproducible across runs; spec.md §5 leaves the order within a tick
// unspecified, so this is a choice, not a requirement.
func findRunnable(ids []string, pending, running, completed map[string]bool, stepByID map[string]*task.Step) []string {
	var runnable []string
	for _, id := range ids {
		if !pending[id] || running[id] || completed[id] {
			continue
		}
		ready := true
		for _, dep := range stepByID[id].DependsOn {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			runnable = append(runnable, id)
		}
	}
	return runnable
}
