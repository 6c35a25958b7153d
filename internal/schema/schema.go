// Package schema generates a JSON Schema document describing task.Task (and
// transitively task.Step and its nested types) for external validation and
// editor tooling. It is grounded on internal/ast/schema.go's
// CustomReflector in the teacher repository this project started from,
// trimmed of the teacher's go/ast doc-comment extraction: the generated
// schema carries no field descriptions, only what the json and jsonschema
// struct tags on task.Task declare.
package schema

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	strcase "github.com/stoewer/go-strcase"

	"github.com/taskflow/pipelinectl/internal/task"
)

// newReflector keeps property keys as the json tags spell them (dependsOn,
// forEach, ...), so the generated schema reads the way a YAML task file is
// actually written; only definition names use the teacher's snake_case.
func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		Namer: func(t reflect.Type) string {
			return strcase.SnakeCase(t.Name())
		},
		ExpandedStruct: true,
	}
}

// TaskSchema returns the JSON Schema for task.Task as indented JSON.
func TaskSchema() ([]byte, error) {
	schema := newReflector().Reflect(&task.Task{})
	return json.MarshalIndent(schema, "", "  ")
}

// StepSchema returns the JSON Schema for task.Step as indented JSON, used
// by tooling that validates a single step in isolation (e.g. a taskfile
// linter annotating one step at a time).
func StepSchema() ([]byte, error) {
	schema := newReflector().Reflect(&task.Step{})
	return json.MarshalIndent(schema, "", "  ")
}
