// Package collaborator provides clients for the external agents pipelines
// delegate work to. A collaborator is a black box: it receives a JSON object,
// does its work, and returns a JSON object. Pipelines never look inside.
package collaborator

import (
	"context"
	"fmt"
)

// ============================================================================
// COLLABORATOR INTERFACE
// ============================================================================

// Collaborator is the contract every external agent client implements.
// Invoke sends one request payload and returns the agent's result document.
type Collaborator interface {
	// Name returns the collaborator's registered name
	Name() string

	// Invoke sends the payload to the collaborator and returns its result.
	// The call respects ctx cancellation and the configured timeout.
	Invoke(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)
}

// ============================================================================
// ERROR TYPES
// ============================================================================

// InvocationError represents a failed collaborator call
type InvocationError struct {
	Collaborator string
	Operation    string
	Message      string
	Err          error
}

func (e *InvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Collaborator, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Collaborator, e.Operation, e.Message)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// NewInvocationError creates a new invocation error
func NewInvocationError(collaborator, operation, message string, err error) *InvocationError {
	return &InvocationError{
		Collaborator: collaborator,
		Operation:    operation,
		Message:      message,
		Err:          err,
	}
}

// ============================================================================
// FUNC COLLABORATOR
// ============================================================================

// Func adapts a plain function into a Collaborator. Useful for tests and
// for in-process collaborators that need no transport.
type Func struct {
	name string
	fn   func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)
}

// NewFunc creates a collaborator backed by fn
func NewFunc(name string, fn func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements Collaborator.Name
func (f *Func) Name() string {
	return f.name
}

// Invoke implements Collaborator.Invoke
func (f *Func) Invoke(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	return f.fn(ctx, payload)
}

// ============================================================================
// MOCK COLLABORATOR
// ============================================================================

// Mock is a collaborator that echoes its payload back with a success status.
// It exists so a configuration can be exercised end to end without any
// external agents running.
type Mock struct {
	name string
}

// NewMock creates a new mock collaborator
func NewMock(name string) *Mock {
	return &Mock{name: name}
}

// Name implements Collaborator.Name
func (m *Mock) Name() string {
	return m.name
}

// Invoke implements Collaborator.Invoke. The result contains every request
// field plus a "status" of "success".
func (m *Mock) Invoke(_ context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		result[k] = v
	}
	result["status"] = "success"
	return result, nil
}
