// Package execctx holds the per-pipeline-execution state the runners in
// internal/pipeline read and write: step status, the results accumulated so
// far, and the PipelineResult returned to callers. It is grounded on
// internal/execcontext's StepStatus/StepResult shape in the teacher
// repository this project started from, trimmed of the teacher's
// parent/child context chaining and AI-specific fields (TokenUsage,
// Response) that this domain has no use for.
package execctx

import "time"

// Status is the step status lifecycle of spec.md §3:
// pending -> running -> (completed | failed | skipped).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepStatus is one entry of PipelineResult.StepStatus (spec.md §6).
type StepStatus struct {
	ID           string     `json:"id"`
	Task         string     `json:"task"`
	Status       Status     `json:"status"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Duration     *time.Duration `json:"duration,omitempty"`
	Error        string     `json:"error,omitempty"`
	Result       any        `json:"result,omitempty"`
	RetryAttempt int        `json:"retryAttempt,omitempty"`
}

// SkipMarker is the shape recorded for a skipped step's result, per
// spec.md §3's ordered-array invariant and §4.5's on-demand/condition-false
// skip reasons.
type SkipMarker struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PipelineResult is the structured record returned by both runners
// (spec.md §3, §6).
type PipelineResult struct {
	Steps          []any                 `json:"steps"`
	StepResults    map[string]any        `json:"stepResults"`
	StepStatus     []*StepStatus         `json:"stepStatus"`
	FinalResult    any                   `json:"finalResult"`
	TotalDuration  time.Duration         `json:"totalDuration"`
	ParallelGroups [][]string            `json:"parallelGroups"`
}

// Context is the read-only mapping templates resolve against (spec.md §3):
// "payload" is the task's payload, "steps" holds per-step results (shape
// differs between runners - array for the sequential runner, map-by-id for
// the DAG runner), and "item"/"index" are added inside a forEach iteration.
type Context map[string]any

// NewContext builds the base context shared by both runners.
func NewContext(payload map[string]any, steps any) Context {
	if payload == nil {
		payload = map[string]any{}
	}
	return Context{
		"payload": payload,
		"steps":   steps,
	}
}

// WithItem returns a copy of c extended with the forEach "item"/"index"
// keys, without mutating c itself (contexts are logically immutable once
// handed to a template resolution).
func (c Context) WithItem(item any, index int) Context {
	out := make(Context, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	out["item"] = item
	out["index"] = index
	return out
}

// Map returns c as a plain map[string]any for the template package, which
// is untyped over its context parameter.
func (c Context) Map() map[string]any {
	return map[string]any(c)
}
