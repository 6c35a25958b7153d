package pipeline

import (
	"context"
	"time"

	"github.com/taskflow/pipelinectl/internal/events"
	"github.com/taskflow/pipelinectl/internal/execctx"
	"github.com/taskflow/pipelinectl/internal/task"
	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
)

// RunSequential implements the legacy sequential pipeline runner of
// spec.md §4.4: steps execute one at a time, in declaration order, with
// `steps` exposed to templates as an ordered array rather than the DAG
// runner's mapping-by-id.
func (r *Runner) RunSequential(ctx context.Context, t *task.Task, progress ProgressFunc, listener pkgevents.Listener) (*execctx.PipelineResult, error) {
	start := time.Now()
	total := len(t.Steps)

	ordered := make([]any, 0, total)
	statuses := make([]*execctx.StepStatus, 0, total)
	byID := make(map[string]any, total)

	var finalResult any

	for i, step := range t.Steps {
		stepID := task.DefaultStepID(step, i)
		stepCtx := execctx.NewContext(t.Payload, append([]any(nil), ordered...))

		st := &execctx.StepStatus{ID: stepID, Task: step.Task, Status: execctx.StatusRunning}
		now := time.Now()
		st.StartedAt = &now
		statuses = append(statuses, st)

		emitEvent(listener, events.StepStart(stepID, step.Task))

		outcome := r.executeStep(ctx, t, step, stepID, stepCtx)

		completedAt := time.Now()
		st.CompletedAt = &completedAt
		duration := completedAt.Sub(now)
		st.Duration = &duration
		st.Status = outcome.Status
		st.Result = outcome.Result
		st.Error = outcome.ErrText
		st.RetryAttempt = outcome.RetryAttempt

		ordered = append(ordered, outcome.Result)
		byID[stepID] = outcome.Result
		finalResult = outcome.Result

		if outcome.Abort != nil {
			emitEvent(listener, events.StepError(stepID, step.Task, outcome.Abort, false))
			return nil, outcome.Abort
		}

		if outcome.ErrText != "" {
			emitEvent(listener, events.StepError(stepID, step.Task, &Error{Kind: KindStepExecution, Message: outcome.ErrText}, true))
		} else {
			emitEvent(listener, events.StepComplete(stepID, step.Task, outcome.Result))
		}

		reportProgress(progress, i+1, total)
	}

	emitEvent(listener, events.PipelineComplete())

	return &execctx.PipelineResult{
		Steps:         ordered,
		StepResults:   byID,
		StepStatus:    statuses,
		FinalResult:   finalResult,
		TotalDuration: time.Since(start),
	}, nil
}
