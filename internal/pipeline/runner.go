// Package pipeline implements the sequential and DAG pipeline runners and
// the dispatcher entry point of spec.md §4.4-§4.6. It is the heart of the
// engine: both runners share the step-execution core in this file
// (runWhen evaluation, forEach fan-out, backend selection/retry/timeout,
// optional-failure absorption) and differ only in how they sequence steps
// (internal/pipeline/sequential.go, internal/pipeline/dag.go).
package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/execctx"
	"github.com/taskflow/pipelinectl/internal/resilience"
	"github.com/taskflow/pipelinectl/internal/task"
	"github.com/taskflow/pipelinectl/internal/template"
	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
)

// ProgressFunc reports the monotonically non-decreasing completion
// percentage described in spec.md §7. Runners report after every scheduling
// tick (DAG) or step (sequential), so the last report is 100 once every step
// has finished; no separate completion report is made beyond that.
type ProgressFunc func(percent int)

// Runner executes single tasks and pipelines against a backend.Registry.
// Grounded on internal/engine/executor.go's Executor/ExecutorConfig shape in
// the teacher repository this project started from.
type Runner struct {
	registry *backend.Registry
	logger   zerolog.Logger
}

// Option configures a Runner, following the functional-options idiom of
// pkg/engine/run.go in the teacher repository this project started from.
type Option func(*Runner)

// WithRegistry sets the backend registry the runner selects against. The
// zero-value Runner has no registry and will fail every selection; callers
// must supply one.
func WithRegistry(r *backend.Registry) Option {
	return func(rn *Runner) { rn.registry = r }
}

// WithLogger overrides the runner's logger (default: the global zerolog
// logger), primarily for tests that want to capture log output.
func WithLogger(l zerolog.Logger) Option {
	return func(rn *Runner) { rn.logger = l }
}

// New constructs a Runner with the given options.
func New(opts ...Option) *Runner {
	r := &Runner{logger: log.Logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stepOutcome is the shared step-execution result both runners translate
// into their own StepStatus bookkeeping.
type stepOutcome struct {
	Status       execctx.Status
	Result       any
	ErrText      string
	RetryAttempt int
	// Abort is non-nil only when a required (non-optional) step's execution
	// must abort the pipeline (spec.md §4.5 point 6).
	Abort error
}

// executeStep runs one step to completion: evaluates runWhen, dispatches to
// forEach fan-out or a single sub-task execution, and absorbs a failing
// optional step into a skip. stepCtx is the template-resolution context
// already scoped to this step's execution (payload + steps, without
// item/index - runForEach adds those per item).
func (r *Runner) executeStep(ctx context.Context, parentTask *task.Task, step *task.Step, stepID string, stepCtx execctx.Context) stepOutcome {
	if skip, reason, cond := evaluateRunWhen(step, stepCtx); skip {
		result := map[string]any{"skipped": true, "reason": reason}
		if cond != "" {
			result["condition"] = cond
		}
		return stepOutcome{Status: execctx.StatusSkipped, Result: result}
	}

	var result any
	var attempts int
	var err error

	if step.ForEach != "" {
		result, err = r.runForEach(ctx, parentTask, step, stepID, stepCtx)
	} else {
		result, attempts, err = r.runSingle(ctx, parentTask, step, stepID, stepCtx)
	}

	if err != nil {
		if step.Optional {
			return stepOutcome{
				Status:       execctx.StatusSkipped,
				Result:       map[string]any{"skipped": true, "error": err.Error()},
				ErrText:      err.Error(),
				RetryAttempt: attempts,
			}
		}
		return stepOutcome{Status: execctx.StatusFailed, ErrText: err.Error(), RetryAttempt: attempts, Abort: err}
	}

	return stepOutcome{Status: execctx.StatusCompleted, Result: result, RetryAttempt: attempts}
}

// evaluateRunWhen implements spec.md §4.5 point 2.
func evaluateRunWhen(step *task.Step, stepCtx execctx.Context) (skip bool, reason string, condition string) {
	switch step.RunWhen {
	case "", "always":
		return false, "", ""
	case "on-demand":
		return true, "on-demand", ""
	default:
		var val any
		if template.IsTemplate(step.RunWhen) {
			val = template.Resolve(step.RunWhen, stepCtx.Map())
		} else {
			val = template.ResolvePath(step.RunWhen, stepCtx.Map())
		}
		if !template.Truthy(val) {
			return true, "condition-false", step.RunWhen
		}
		return false, "", ""
	}
}

// runSingle resolves a step's input templates, builds its sub-task, selects
// a backend, and executes it wrapped in retry and timeout (spec.md §4.5
// point 4).
func (r *Runner) runSingle(ctx context.Context, parentTask *task.Task, step *task.Step, stepID string, stepCtx execctx.Context) (any, int, error) {
	subTask := buildSubTask(parentTask, step, template.RenderField(step.Input, stepCtx.Map()))
	return r.executeSubTask(ctx, subTask, effectiveTimeout(parentTask, step), effectiveRetry(parentTask, step), stepID)
}

// runForEach implements spec.md §4.5 point 3.
func (r *Runner) runForEach(ctx context.Context, parentTask *task.Task, step *task.Step, stepID string, stepCtx execctx.Context) (any, error) {
	var raw any
	if template.IsTemplate(step.ForEach) {
		raw = template.Resolve(step.ForEach, stepCtx.Map())
	} else {
		raw = template.ResolvePath(step.ForEach, stepCtx.Map())
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, forEachTypeError(step.ForEach, raw)
	}
	if len(items) == 0 {
		return []any{}, nil
	}

	batchSize := step.ForEachConcurrency
	if batchSize <= 0 || batchSize > len(items) {
		batchSize = len(items)
	}

	results := make([]any, len(items))
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		errs := make([]error, end-start)
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				itemCtx := stepCtx.WithItem(items[i], i)
				subTask := buildSubTask(parentTask, step, template.RenderField(step.Input, itemCtx.Map()))
				res, _, err := r.executeSubTask(ctx, subTask, effectiveTimeout(parentTask, step), effectiveRetry(parentTask, step), stepID)
				if err != nil {
					errs[i-start] = err
					return
				}
				results[i] = res
			}(i)
		}
		wg.Wait()

		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
	}

	return results, nil
}

// executeSubTask selects a backend for subTask and runs it through the
// retry loop, itself wrapped in a timeout when one applies.
func (r *Runner) executeSubTask(ctx context.Context, subTask *task.Task, timeout time.Duration, retryCfg resilience.RetryConfig, label string) (any, int, error) {
	b, err := r.registry.Select(ctx, subTask)
	if err != nil {
		return nil, 0, newError(KindBackendSelection, err, "%s", err.Error())
	}

	attemptsUsed := 0
	runRetry := func(ctx context.Context) (any, error) {
		val, attempts, err := resilience.Retry(ctx, retryCfg, nil, func(ctx context.Context) (any, error) {
			return b.Execute(ctx, subTask)
		})
		attemptsUsed = attempts
		return val, err
	}

	var result any
	if timeout > 0 {
		result, err = resilience.WithTimeout(ctx, timeout, label, runRetry)
	} else {
		result, err = runRetry(ctx)
	}

	if err != nil {
		if resilience.IsTimeout(err) {
			return nil, attemptsUsed, newError(KindStepTimeout, err, "%s", err.Error())
		}
		return nil, attemptsUsed, newError(KindStepExecution, err, "%s", err.Error())
	}
	return result, attemptsUsed, nil
}

// buildSubTask constructs the per-step sub-task of spec.md §4.4/§4.5: it
// inherits backend/resources/retry from the parent task unless the step
// overrides resources/retry.
func buildSubTask(parentTask *task.Task, step *task.Step, payload map[string]any) *task.Task {
	resources := step.Resources
	if resources == nil {
		resources = parentTask.Resources
	}
	retry := step.Retry
	if retry == nil {
		retry = parentTask.Retry
	}
	return &task.Task{
		Type:      step.Task,
		Backend:   parentTask.Backend,
		Payload:   payload,
		Resources: resources,
		Retry:     retry,
	}
}

func effectiveRetry(parentTask *task.Task, step *task.Step) resilience.RetryConfig {
	policy := step.Retry
	if policy == nil {
		policy = parentTask.Retry
	}
	cfg := resilience.RetryConfig{Attempts: 1, Backoff: resilience.BackoffFixed}
	if policy != nil {
		cfg.Attempts = policy.EffectiveAttempts()
		cfg.Delay = time.Duration(policy.DelayMS) * time.Millisecond
		if policy.Backoff == string(resilience.BackoffExponential) {
			cfg.Backoff = resilience.BackoffExponential
		}
	}
	return cfg
}

// effectiveTimeout implements spec.md §4.5 point 4: step timeout wins over
// the task-level resources timeout hint.
func effectiveTimeout(parentTask *task.Task, step *task.Step) time.Duration {
	if step.TimeoutSeconds > 0 {
		return time.Duration(step.TimeoutSeconds * float64(time.Second))
	}
	if parentTask.Resources != nil && parentTask.Resources.TimeoutMS > 0 {
		return time.Duration(parentTask.Resources.TimeoutMS) * time.Millisecond
	}
	return 0
}

func emitEvent(l pkgevents.Listener, e pkgevents.ExecutionEvent) {
	if l == nil {
		return
	}
	l.OnEvent(e)
}

func reportProgress(fn ProgressFunc, completed, total int) {
	if fn == nil || total == 0 {
		return
	}
	fn(int(math.Round(100 * float64(completed) / float64(total))))
}
