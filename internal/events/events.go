// Package events builds the pkg/events.ExecutionEvent values the DAG and
// sequential pipeline runners emit at each step boundary (spec.md §4.5,
// §6). Kept separate from pkg/events so that public package stays a pure
// data/interface contract while construction details - what goes in Data
// for a given kind - live next to the runners that populate them.
package events

import (
	"time"

	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
)

// StepStart builds a step:start event for stepID.
func StepStart(stepID, taskType string) pkgevents.ExecutionEvent {
	return pkgevents.ExecutionEvent{
		Kind:      pkgevents.KindStepStart,
		StepID:    stepID,
		TaskType:  taskType,
		Timestamp: time.Now(),
	}
}

// StepComplete builds a step:complete event carrying the step's result.
func StepComplete(stepID, taskType string, result any) pkgevents.ExecutionEvent {
	return pkgevents.ExecutionEvent{
		Kind:      pkgevents.KindStepComplete,
		StepID:    stepID,
		TaskType:  taskType,
		Timestamp: time.Now(),
		Data:      map[string]any{"result": result},
	}
}

// StepError builds a step:error event. optional marks a failure the
// scheduler absorbed into a skip rather than aborting the pipeline for
// (spec.md §4.5 point 6).
func StepError(stepID, taskType string, err error, optional bool) pkgevents.ExecutionEvent {
	data := map[string]any{"optional": optional}
	if err != nil {
		data["error"] = err.Error()
	}
	return pkgevents.ExecutionEvent{
		Kind:      pkgevents.KindStepError,
		StepID:    stepID,
		TaskType:  taskType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// PipelineComplete builds the terminal pipeline:complete event.
func PipelineComplete() pkgevents.ExecutionEvent {
	return pkgevents.ExecutionEvent{
		Kind:      pkgevents.KindPipelineComplete,
		Timestamp: time.Now(),
	}
}
