// Package events defines the public event stream emitted by the pipeline
// engine (spec.md §4.5, §6): a Listener receives ExecutionEvents of the four
// canonical kinds step:start, step:complete, step:error, pipeline:complete.
// It is grounded on pkg/events/listen.go in the teacher repository this
// project started from, trimmed to this engine's four-kind taxonomy (the
// teacher's larger workflow/action/tool-use event set has no analogue in a
// generic pipeline engine's contract).
package events

import "time"

// Kind is one of the four event kinds the DAG and sequential runners emit.
type Kind string

const (
	KindStepStart        Kind = "step:start"
	KindStepComplete      Kind = "step:complete"
	KindStepError        Kind = "step:error"
	KindPipelineComplete Kind = "pipeline:complete"
)

// ExecutionEvent is one entry of the engine's event stream. StepID is empty
// for pipeline-level events. Data carries kind-specific detail (e.g.
// {"optional": true} on an absorbed step:error, per spec.md §4.5).
type ExecutionEvent struct {
	Kind      Kind           `json:"kind"`
	StepID    string         `json:"stepId,omitempty"`
	TaskType  string         `json:"taskType,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Listener receives the engine's event stream. A nil Listener is valid
// everywhere an *optional* listener is accepted - callers that don't care
// about events simply don't supply one.
type Listener interface {
	OnEvent(e ExecutionEvent)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(e ExecutionEvent)

func (f ListenerFunc) OnEvent(e ExecutionEvent) { f(e) }

// NoopListener discards every event. Useful as a default so callers never
// need to nil-check before emitting.
type NoopListener struct{}

func (NoopListener) OnEvent(ExecutionEvent) {}
