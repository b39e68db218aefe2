package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/pipeline"
	"github.com/stepchain/stepchain/runstore"
)

// ============================================================================
// RUN MANAGER
// ============================================================================

// ErrAtCapacity is returned by Trigger when the configured bound on
// in-flight runs is reached. The trigger is rejected, not queued.
var ErrAtCapacity = errors.New("run capacity reached")

// RunManager launches pipeline runs in the background and answers status
// queries. Independent runs never coordinate; an optional bound caps how
// many may be in flight at once.
type RunManager struct {
	engine    *pipeline.Engine
	pipelines *pipeline.Registry
	policies  map[string]config.PipelineConfig
	store     runstore.Store
	logger    *slog.Logger

	group  errgroup.Group
	mu     sync.RWMutex
	active map[string]string // run_id -> pipeline
}

// RunManagerConfig contains the run manager's dependencies
type RunManagerConfig struct {
	Engine    *pipeline.Engine
	Pipelines *pipeline.Registry
	Policies  map[string]config.PipelineConfig
	Store     runstore.Store
	Logger    *slog.Logger

	// MaxConcurrentRuns bounds in-flight runs (0: unbounded)
	MaxConcurrentRuns int
}

// RunStatusView is what a status query returns
type RunStatusView struct {
	RunID       string                 `json:"run_id"`
	Pipeline    string                 `json:"pipeline"`
	Status      string                 `json:"status"`
	FailingStep string                 `json:"failing_step,omitempty"`
	ErrorDetail string                 `json:"error_detail,omitempty"`
	StartedAt   string                 `json:"started_at,omitempty"`
	FinishedAt  string                 `json:"finished_at,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// NewRunManager creates a new run manager
func NewRunManager(cfg *RunManagerConfig) *RunManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &RunManager{
		engine:    cfg.Engine,
		pipelines: cfg.Pipelines,
		policies:  cfg.Policies,
		store:     cfg.Store,
		logger:    logger,
		active:    make(map[string]string),
	}
	if cfg.MaxConcurrentRuns > 0 {
		m.group.SetLimit(cfg.MaxConcurrentRuns)
	}
	return m
}

// Trigger validates the request and launches a run in the background,
// returning the run identifier the caller can poll with
func (m *RunManager) Trigger(name string, input map[string]interface{}) (string, error) {
	def, ok := m.pipelines.Get(name)
	if !ok {
		return "", pipeline.NewPipelineError("manager", "trigger",
			fmt.Sprintf("unknown pipeline '%s'", name), nil)
	}

	policy := m.policyFor(name)
	if policy != nil && !policy.IsEnabled() {
		return "", pipeline.NewPipelineError("manager", "trigger",
			fmt.Sprintf("pipeline '%s' is disabled", name), nil)
	}

	for _, key := range def.RequiredInput {
		if _, ok := input[key]; !ok {
			return "", pipeline.NewPipelineError("manager", "trigger",
				fmt.Sprintf("required input field '%s' missing", key), nil)
		}
	}

	runID := uuid.New().String()

	m.mu.Lock()
	m.active[runID] = name
	m.mu.Unlock()

	// TryGo rejects instead of queueing when the concurrency bound is
	// saturated, so a burst of triggers never stalls the caller
	launched := m.group.TryGo(func() error {
		defer func() {
			m.mu.Lock()
			delete(m.active, runID)
			m.mu.Unlock()
		}()

		// The run carries its own wall-clock budget
		if _, err := m.engine.ExecuteWithRunID(context.Background(), def, policy, input, runID); err != nil {
			m.logger.Error("run could not start",
				"pipeline", name, "run_id", runID, "error", err)
		}
		return nil
	})
	if !launched {
		m.mu.Lock()
		delete(m.active, runID)
		m.mu.Unlock()
		return "", ErrAtCapacity
	}

	return runID, nil
}

// Status reports a run's current state: running while in flight, the
// archived terminal record afterwards
func (m *RunManager) Status(ctx context.Context, runID string) (*RunStatusView, error) {
	m.mu.RLock()
	name, running := m.active[runID]
	m.mu.RUnlock()

	if running {
		return &RunStatusView{
			RunID:    runID,
			Pipeline: name,
			Status:   string(pipeline.StatusRunning),
		}, nil
	}

	record, err := m.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return recordView(record), nil
}

// List returns archived runs, newest first
func (m *RunManager) List(ctx context.Context, name string, limit int) ([]*RunStatusView, error) {
	records, err := m.store.List(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	views := make([]*RunStatusView, len(records))
	for i, record := range records {
		views[i] = recordView(record)
	}
	return views, nil
}

// Pipelines returns registered pipeline names
func (m *RunManager) Pipelines() []string {
	return m.pipelines.Names()
}

// Wait blocks until every in-flight run has reached a terminal state
func (m *RunManager) Wait() error {
	return m.group.Wait()
}

func (m *RunManager) policyFor(name string) *config.PipelineConfig {
	if m.policies == nil {
		return nil
	}
	policy, ok := m.policies[name]
	if !ok {
		return nil
	}
	return &policy
}

func recordView(record *runstore.Record) *RunStatusView {
	view := &RunStatusView{
		RunID:       record.RunID,
		Pipeline:    record.Pipeline,
		Status:      record.Status,
		FailingStep: record.FailingStep,
		ErrorDetail: record.ErrorDetail,
	}
	if len(record.Context) > 0 {
		// Archive corruption is surfaced as a missing context, not an error
		_ = json.Unmarshal(record.Context, &view.Context)
	}
	if !record.StartedAt.IsZero() {
		view.StartedAt = record.StartedAt.Format(timeFormat)
	}
	if !record.FinishedAt.IsZero() {
		view.FinishedAt = record.FinishedAt.Format(timeFormat)
	}
	return view
}
