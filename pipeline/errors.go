package pipeline

import (
	"fmt"
)

// ============================================================================
// ERROR TYPES
// ============================================================================

// PipelineError represents an orchestration error
type PipelineError struct {
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new pipeline error
func NewPipelineError(component, operation, message string, err error) *PipelineError {
	return &PipelineError{
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// PayloadError signals that a payload template referenced a context path
// that does not resolve. It marks a pipeline-definition defect, so runs
// abort immediately rather than sending malformed data downstream.
type PayloadError struct {
	Step    string
	Field   string
	Path    string
	Message string
}

func (e *PayloadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[payload:%s] field '%s': %s (path '%s')", e.Step, e.Field, e.Message, e.Path)
	}
	return fmt.Sprintf("[payload:%s] field '%s': %s", e.Step, e.Field, e.Message)
}

// RunError is the error descriptor a failed run surfaces to its caller.
// FailingStep always names the step whose outcome failed.
type RunError struct {
	Pipeline    string
	RunID       string
	FailingStep string
	Detail      string
	Err         error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[%s:%s] step '%s' failed: %s", e.Pipeline, e.RunID, e.FailingStep, e.Detail)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
