// Package schema exposes the engine's JSON Schema for third-party tools:
// editors, validators, and documentation generators that want to introspect
// what a valid task or step looks like without depending on internal
// packages. It is grounded on pkg/schema/schema.go in the teacher
// repository this project started from, trimmed to this engine's two
// schema-bearing types (task.Task, task.Step) since this engine has no
// analogue of the teacher's expression/function/model-provider catalog.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/taskflow/pipelinectl/internal/schema"
)

// Output bundles both schemas a caller typically wants together.
type Output struct {
	Task json.RawMessage `json:"task"`
	Step json.RawMessage `json:"step"`
}

// Get returns the JSON Schema for both task.Task and task.Step.
func Get() (*Output, error) {
	taskSchema, err := schema.TaskSchema()
	if err != nil {
		return nil, fmt.Errorf("schema: task: %w", err)
	}
	stepSchema, err := schema.StepSchema()
	if err != nil {
		return nil, fmt.Errorf("schema: step: %w", err)
	}
	return &Output{Task: taskSchema, Step: stepSchema}, nil
}
