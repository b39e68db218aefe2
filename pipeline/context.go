// Package pipeline implements the orchestration core: execution contexts,
// payload templates, pipeline definitions and the engine that runs them.
//
// A pipeline is a fixed, linear chain of steps. Each step builds its outbound
// payload from the execution context, calls a collaborator (or transforms the
// context in place), and records its result into a named slot. Any failure
// funnels into a single failure terminal that records which step failed.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// ============================================================================
// EXECUTION CONTEXT
// ============================================================================

// ExecutionContext is the per-run record threaded through all steps. It holds
// the trigger input, the run identity, and one write-once result slot per
// step. Slots grow monotonically: once written, a slot is never altered.
type ExecutionContext struct {
	mu        sync.RWMutex
	runID     string
	pipeline  string
	timestamp string
	input     map[string]interface{}
	results   map[string]map[string]interface{}
}

// NewExecutionContext creates a context seeded with the trigger input
func NewExecutionContext(pipeline, runID, timestamp string, input map[string]interface{}) *ExecutionContext {
	in := make(map[string]interface{}, len(input))
	for k, v := range input {
		in[k] = v
	}
	return &ExecutionContext{
		runID:     runID,
		pipeline:  pipeline,
		timestamp: timestamp,
		input:     in,
		results:   make(map[string]map[string]interface{}),
	}
}

// RunID returns the run identifier
func (ec *ExecutionContext) RunID() string {
	return ec.runID
}

// Pipeline returns the pipeline name
func (ec *ExecutionContext) Pipeline() string {
	return ec.pipeline
}

// Timestamp returns the run start timestamp (UTC, RFC 3339)
func (ec *ExecutionContext) Timestamp() string {
	return ec.timestamp
}

// Input returns the named trigger input field
func (ec *ExecutionContext) Input(key string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.input[key]
	return v, ok
}

// SetResult records a step result into its slot. A slot may be written
// exactly once; a second write reports a definition defect.
func (ec *ExecutionContext) SetResult(slot string, result map[string]interface{}) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if _, exists := ec.results[slot]; exists {
		return NewPipelineError("context", "set_result",
			fmt.Sprintf("result slot '%s' already written", slot), nil)
	}

	copied := make(map[string]interface{}, len(result))
	for k, v := range result {
		copied[k] = v
	}
	ec.results[slot] = copied
	return nil
}

// Result returns a step's recorded result document
func (ec *ExecutionContext) Result(slot string) (map[string]interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	r, ok := ec.results[slot]
	return r, ok
}

// HasResult reports whether a slot has been written
func (ec *ExecutionContext) HasResult(slot string) bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	_, ok := ec.results[slot]
	return ok
}

// Lookup resolves a dotted path inside a recorded result, e.g.
// Lookup("prd_result", "prd_id") or Lookup("parsed_event", "detail.status").
func (ec *ExecutionContext) Lookup(slot, path string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	result, ok := ec.results[slot]
	if !ok {
		return nil, false
	}

	var current interface{} = result
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Snapshot returns a copy of the full context state: run identity, input
// fields and every written result slot. Used for archiving and as the
// successful run's output document.
func (ec *ExecutionContext) Snapshot() map[string]interface{} {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	input := make(map[string]interface{}, len(ec.input))
	for k, v := range ec.input {
		input[k] = v
	}

	results := make(map[string]interface{}, len(ec.results))
	for slot, result := range ec.results {
		copied := make(map[string]interface{}, len(result))
		for k, v := range result {
			copied[k] = v
		}
		results[slot] = copied
	}

	return map[string]interface{}{
		"run_id":       ec.runID,
		"pipeline":     ec.pipeline,
		"timestamp":    ec.timestamp,
		"input":        input,
		"step_results": results,
	}
}
