package pipeline

import (
	"time"
)

// ============================================================================
// RUN TYPES
// ============================================================================

// RunStatus represents the state of a pipeline run
type RunStatus string

const (
	// StatusRunning indicates the run is executing
	StatusRunning RunStatus = "running"
	// StatusSucceeded indicates the run reached the success terminal
	StatusSucceeded RunStatus = "succeeded"
	// StatusFailed indicates the run reached the failure terminal
	StatusFailed RunStatus = "failed"
)

// StepOutcome is the tagged result of one step execution. Exactly one of
// Result and Err is set; the engine branches on it to decide the next
// transition instead of catching anything mid-flight.
type StepOutcome struct {
	Step   string
	Result map[string]interface{}
	Err    error
}

// Ok creates a successful outcome
func Ok(step string, result map[string]interface{}) StepOutcome {
	return StepOutcome{Step: step, Result: result}
}

// Failed creates a failed outcome
func Failed(step string, err error) StepOutcome {
	return StepOutcome{Step: step, Err: err}
}

// IsFailure reports whether the outcome is a failure
func (o StepOutcome) IsFailure() bool {
	return o.Err != nil
}

// RunResult is the terminal record of one pipeline run
type RunResult struct {
	RunID      string
	Pipeline   string
	Status     RunStatus
	Output     map[string]interface{} // context snapshot (success)
	Error      *RunError              // failure descriptor (failure)
	StartedAt  time.Time
	FinishedAt time.Time
}
