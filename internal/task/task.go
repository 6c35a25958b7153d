// Package task defines the declarative data model consumed by the pipeline
// engine: Task, Step, and the resource/retry policies attached to each.
package task

import "strconv"

// RetryPolicy controls the retry loop in internal/resilience. Attempts of 1
// means no retry. Backoff selects the delay strategy between attempts.
type RetryPolicy struct {
	Attempts int    `yaml:"attempts,omitempty" json:"attempts,omitempty" jsonschema:"minimum=1,default=1"`
	Backoff  string `yaml:"backoff,omitempty" json:"backoff,omitempty" jsonschema:"enum=fixed,enum=exponential,default=fixed"`
	DelayMS  int    `yaml:"delayMs,omitempty" json:"delayMs,omitempty" jsonschema:"minimum=0"`
}

// EffectiveAttempts returns the effective attempt count, defaulting to 1
// (no retry) when unset.
func (r *RetryPolicy) EffectiveAttempts() int {
	if r == nil || r.Attempts <= 0 {
		return 1
	}
	return r.Attempts
}

// GPURequirement describes a GPU need used by the backend selection policy.
type GPURequirement struct {
	Type  string `yaml:"type,omitempty" json:"type,omitempty"`
	Count int    `yaml:"count,omitempty" json:"count,omitempty" jsonschema:"minimum=1,default=1"`
}

// ResourceRequirements is an advisory hint forwarded to the selected backend;
// the engine never reserves or enforces these values itself.
type ResourceRequirements struct {
	GPU       *GPURequirement `yaml:"gpu,omitempty" json:"gpu,omitempty"`
	VRAMMB    int             `yaml:"vramMb,omitempty" json:"vramMb,omitempty"`
	RAMMB     int             `yaml:"ramMb,omitempty" json:"ramMb,omitempty"`
	CPUCores  float64         `yaml:"cpuCores,omitempty" json:"cpuCores,omitempty"`
	TimeoutMS int             `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty"`
}

// WantsGPU reports whether the requirements declare a GPU need, used by the
// selection policy's GPU-aware backend preference.
func (r *ResourceRequirements) WantsGPU() bool {
	return r != nil && r.GPU != nil
}

// Effect is a declarative lifecycle hook. The engine passes these through
// unchanged; it neither fires nor validates them (spec.md §9 open question).
type Effect struct {
	Event string         `yaml:"$event" json:"$event"`
	Data  map[string]any `yaml:",inline" json:"-"`
}

// Step is a single node in a pipeline's dependency graph. ID is left empty
// when not declared; runners default it to "step_<index>" at execution time
// rather than at parse time, so the dispatcher can still observe whether an
// id was explicitly declared (spec.md §4.6 routing rule).
type Step struct {
	ID                 string                `yaml:"id,omitempty" json:"id,omitempty"`
	Task               string                `yaml:"task" json:"task" jsonschema:"required"`
	Input               map[string]string     `yaml:"input,omitempty" json:"input,omitempty"`
	DependsOn          []string              `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	ForEach            string                `yaml:"forEach,omitempty" json:"forEach,omitempty"`
	ForEachConcurrency int                   `yaml:"forEachConcurrency,omitempty" json:"forEachConcurrency,omitempty"`
	RunWhen            string                `yaml:"runWhen,omitempty" json:"runWhen,omitempty"`
	TimeoutSeconds     float64               `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Optional           bool                  `yaml:"optional,omitempty" json:"optional,omitempty"`
	Resources          *ResourceRequirements `yaml:"resources,omitempty" json:"resources,omitempty"`
	Retry              *RetryPolicy          `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// Task is a declarative unit of work: either a single backend call (no
// Steps) or a pipeline (non-empty Steps). Tasks are ephemeral — the engine
// never mutates the Task it was given; all derived state lives alongside it.
type Task struct {
	Type      string                `yaml:"type" json:"type" jsonschema:"required"`
	Backend   string                `yaml:"backend,omitempty" json:"backend,omitempty"`
	Queue     string                `yaml:"queue,omitempty" json:"queue,omitempty"`
	Priority  int                   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Payload   map[string]any        `yaml:"payload,omitempty" json:"payload,omitempty"`
	Steps     []*Step               `yaml:"steps,omitempty" json:"steps,omitempty"`
	Resources *ResourceRequirements `yaml:"resources,omitempty" json:"resources,omitempty"`
	Retry     *RetryPolicy          `yaml:"retry,omitempty" json:"retry,omitempty"`

	OnPending  []Effect `yaml:"onPending,omitempty" json:"onPending,omitempty"`
	OnProgress []Effect `yaml:"onProgress,omitempty" json:"onProgress,omitempty"`
	OnSuccess  []Effect `yaml:"onSuccess,omitempty" json:"onSuccess,omitempty"`
	OnError    []Effect `yaml:"onError,omitempty" json:"onError,omitempty"`

	// Delay and Cron are declarative only; the engine does not interpret
	// them (spec.md §9 open question) - the job queue is responsible.
	Delay string `yaml:"delay,omitempty" json:"delay,omitempty"`
	Cron  string `yaml:"cron,omitempty" json:"cron,omitempty"`
}

// IsPipeline reports whether the task carries a non-empty step list.
func (t *Task) IsPipeline() bool {
	return len(t.Steps) > 0
}

// UsesDAG implements the dispatcher's routing rule (spec.md §4.6): a
// pipeline is routed to the DAG runner if any step declares an id or a
// dependsOn list, otherwise it falls back to the sequential runner.
func (t *Task) UsesDAG() bool {
	for _, s := range t.Steps {
		if s.ID != "" || len(s.DependsOn) > 0 {
			return true
		}
	}
	return false
}

// DefaultStepID returns the step's declared id, or "step_<index>" when
// absent, per spec.md §3.
func DefaultStepID(s *Step, index int) string {
	if s.ID != "" {
		return s.ID
	}
	return stepIDPrefix(index)
}

func stepIDPrefix(index int) string {
	return "step_" + strconv.Itoa(index)
}
