package pipeline

import (
	"fmt"
	"strings"
)

// ErrorKind enumerates the error kinds of spec.md §7.
type ErrorKind string

const (
	KindBackendSelection ErrorKind = "BackendSelectionError"
	KindTemplateType     ErrorKind = "TemplateTypeError"
	KindStepTimeout      ErrorKind = "StepTimeout"
	KindStepExecution    ErrorKind = "StepExecutionError"
	KindPipelineDeadlock ErrorKind = "PipelineDeadlock"
)

// Error is the engine's single typed error, carrying a stable Kind plus a
// message matching spec.md §6's exact error-code strings.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func forEachTypeError(exprLabel string, got any) *Error {
	return newError(KindTemplateType, nil,
		`forEach template "%s" did not resolve to array, got: %T`, exprLabel, got)
}

func deadlockError(taskTypes []string) *Error {
	return newError(KindPipelineDeadlock, nil,
		"Pipeline deadlock: cannot run remaining steps [%s]. Check for circular dependencies or missing dependency IDs.",
		strings.Join(taskTypes, ", "))
}
