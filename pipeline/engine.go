package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stepchain/stepchain/collaborator"
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/notify"
	"github.com/stepchain/stepchain/runstore"
)

// ============================================================================
// ENGINE
// ============================================================================

// EngineConfig contains the engine's dependencies
type EngineConfig struct {
	Collaborators *collaborator.Registry
	Notifiers     *notify.Registry
	Store         runstore.Store
	Metrics       *Metrics
	Logger        *slog.Logger
	Tracer        trace.Tracer
	Environment   string
}

// Engine executes pipeline definitions. Each run is a single logical thread
// of control: steps execute strictly sequentially, every run owns its
// context exclusively, and independent runs never coordinate.
type Engine struct {
	collaborators *collaborator.Registry
	notifiers     *notify.Registry
	store         runstore.Store
	metrics       *Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
	environment   string
}

// NewEngine creates a new pipeline engine
func NewEngine(cfg *EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("stepchain")
	}
	store := cfg.Store
	if store == nil {
		store = runstore.NewMemoryStore()
	}

	return &Engine{
		collaborators: cfg.Collaborators,
		notifiers:     cfg.Notifiers,
		store:         store,
		metrics:       cfg.Metrics,
		logger:        logger,
		tracer:        tracer,
		environment:   cfg.Environment,
	}
}

// Execute runs a pipeline to a terminal state under a generated run
// identifier. The returned RunResult always carries exactly one terminal
// status; err is non-nil only when the run could not start (missing
// required input).
func (e *Engine) Execute(ctx context.Context, def *Definition, policy *config.PipelineConfig, input map[string]interface{}) (*RunResult, error) {
	return e.ExecuteWithRunID(ctx, def, policy, input, uuid.New().String())
}

// ExecuteWithRunID runs a pipeline under a caller-supplied run identifier.
// Asynchronous triggers generate the identifier before launching so the
// caller can poll for the run immediately.
func (e *Engine) ExecuteWithRunID(ctx context.Context, def *Definition, policy *config.PipelineConfig, input map[string]interface{}, runID string) (*RunResult, error) {
	for _, key := range def.RequiredInput {
		if _, ok := input[key]; !ok {
			return nil, NewPipelineError(def.Name, "execute",
				fmt.Sprintf("required input field '%s' missing", key), nil)
		}
	}

	startedAt := time.Now().UTC()
	ec := NewExecutionContext(def.Name, runID, startedAt.Format(time.RFC3339), input)

	timeout := def.Timeout
	if policy != nil && policy.Timeout > 0 {
		timeout = policy.Timeout.Duration()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pipeline.name", def.Name),
			attribute.String("run.id", runID),
		))
	defer span.End()

	e.logger.Info("pipeline run started",
		"pipeline", def.Name, "run_id", runID, "steps", len(def.Steps))

	for i := range def.Steps {
		step := &def.Steps[i]

		outcome := e.executeStep(ctx, ec, def, policy, step)
		if outcome.IsFailure() {
			span.SetStatus(codes.Error, outcome.Err.Error())
			return e.finishFailed(ctx, ec, def, input, outcome, startedAt), nil
		}

		if err := ec.SetResult(step.ResultSlot, outcome.Result); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return e.finishFailed(ctx, ec, def, input, Failed(step.Name, err), startedAt), nil
		}
	}

	span.SetStatus(codes.Ok, "")
	return e.finishSucceeded(ctx, ec, def, startedAt), nil
}

// executeStep runs one step to a tagged outcome. Nothing escapes: payload
// errors, invocation errors and timeouts all come back as a failed outcome
// naming the step.
func (e *Engine) executeStep(ctx context.Context, ec *ExecutionContext, def *Definition, policy *config.PipelineConfig, step *Step) StepOutcome {
	ctx, span := e.tracer.Start(ctx, "pipeline.step",
		trace.WithAttributes(attribute.String("step.name", step.Name)))
	defer span.End()

	started := time.Now()
	outcome := e.runStep(ctx, ec, def, policy, step)
	elapsed := time.Since(started)

	e.metrics.observeStep(def.Name, step.Name, outcome.IsFailure(), elapsed)

	if outcome.IsFailure() {
		span.SetStatus(codes.Error, outcome.Err.Error())
		e.logger.Error("step failed",
			"pipeline", def.Name, "run_id", ec.RunID(), "step", step.Name,
			"duration", elapsed, "error", outcome.Err)
	} else {
		e.logger.Info("step completed",
			"pipeline", def.Name, "run_id", ec.RunID(), "step", step.Name,
			"duration", elapsed)
	}
	return outcome
}

func (e *Engine) runStep(ctx context.Context, ec *ExecutionContext, def *Definition, policy *config.PipelineConfig, step *Step) StepOutcome {
	if err := ctx.Err(); err != nil {
		return Failed(step.Name, NewPipelineError(def.Name, "run_step", "run budget exhausted", err))
	}

	var payload map[string]interface{}
	if step.Template != nil {
		built, err := step.Template.Build(ec, step.Name)
		if err != nil {
			return Failed(step.Name, err)
		}
		payload = built
	}

	switch step.Kind {
	case StepInvoke:
		return e.invokeCollaborator(ctx, def, policy, step, payload)

	case StepTransform:
		return Ok(step.Name, payload)

	case StepNotify:
		return e.deliverNotice(ctx, ec, def, step, payload)

	case StepAggregate:
		result, err := step.Aggregate(ec)
		if err != nil {
			return Failed(step.Name, NewPipelineError(def.Name, "aggregate", "aggregation failed", err))
		}
		return Ok(step.Name, result)

	default:
		return Failed(step.Name, NewPipelineError(def.Name, "run_step",
			fmt.Sprintf("unknown step kind %d", step.Kind), nil))
	}
}

// invokeCollaborator performs the external call with the step's retry policy
func (e *Engine) invokeCollaborator(ctx context.Context, def *Definition, policy *config.PipelineConfig, step *Step, payload map[string]interface{}) StepOutcome {
	c, ok := e.collaborators.Get(step.Collaborator)
	if !ok {
		return Failed(step.Name, NewPipelineError(def.Name, "invoke",
			fmt.Sprintf("collaborator '%s' not registered", step.Collaborator), nil))
	}

	retry := stepRetry(step, policy)
	backoff := retry.InitialBackoff.Duration()

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		result, err := c.Invoke(ctx, payload)
		if err == nil {
			return Ok(step.Name, result)
		}
		lastErr = err

		if attempt == retry.MaxAttempts || ctx.Err() != nil {
			break
		}

		e.logger.Warn("step attempt failed, retrying",
			"pipeline", def.Name, "step", step.Name,
			"attempt", attempt, "backoff", backoff, "error", err)

		if err := sleep(ctx, backoff); err != nil {
			break
		}
		backoff = time.Duration(float64(backoff) * retry.Multiplier)
	}

	return Failed(step.Name, lastErr)
}

// deliverNotice sends the built payload as a success notice and records a
// delivery receipt as the step result
func (e *Engine) deliverNotice(ctx context.Context, ec *ExecutionContext, def *Definition, step *Step, payload map[string]interface{}) StepOutcome {
	n, ok := e.notifiers.Get(step.Notifier)
	if !ok {
		return Failed(step.Name, NewPipelineError(def.Name, "notify",
			fmt.Sprintf("notifier '%s' not registered", step.Notifier), nil))
	}

	notice, err := notify.DecodeSuccessNotice(payload)
	if err != nil {
		return Failed(step.Name, err)
	}
	notice.Environment = e.environment
	notice.Pipeline = def.Name
	notice.RunID = ec.RunID()

	if err := n.NotifySuccess(ctx, notice); err != nil {
		return Failed(step.Name, err)
	}

	return Ok(step.Name, map[string]interface{}{
		"status":   "sent",
		"notifier": step.Notifier,
		"subject":  notice.Subject(),
	})
}

func (e *Engine) finishSucceeded(ctx context.Context, ec *ExecutionContext, def *Definition, startedAt time.Time) *RunResult {
	finishedAt := time.Now().UTC()
	snapshot := ec.Snapshot()

	e.metrics.observeRun(def.Name, StatusSucceeded)
	e.logger.Info("pipeline run succeeded",
		"pipeline", def.Name, "run_id", ec.RunID(), "duration", finishedAt.Sub(startedAt))

	e.archive(ctx, &runstore.Record{
		RunID:      ec.RunID(),
		Pipeline:   def.Name,
		Status:     string(StatusSucceeded),
		Context:    marshalSnapshot(snapshot),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	})

	return &RunResult{
		RunID:      ec.RunID(),
		Pipeline:   def.Name,
		Status:     StatusSucceeded,
		Output:     snapshot,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

// finishFailed routes any step failure through the single failure terminal:
// record the failing step, notify when the pipeline opted in, archive.
func (e *Engine) finishFailed(ctx context.Context, ec *ExecutionContext, def *Definition, input map[string]interface{}, outcome StepOutcome, startedAt time.Time) *RunResult {
	finishedAt := time.Now().UTC()

	runErr := &RunError{
		Pipeline:    def.Name,
		RunID:       ec.RunID(),
		FailingStep: outcome.Step,
		Detail:      outcome.Err.Error(),
		Err:         outcome.Err,
	}

	e.metrics.observeRun(def.Name, StatusFailed)
	e.logger.Error("pipeline run failed",
		"pipeline", def.Name, "run_id", ec.RunID(),
		"failing_step", outcome.Step, "error", outcome.Err)

	if def.OnFailure != nil {
		e.notifyFailure(ctx, ec, def, input, runErr)
	}

	snapshot := ec.Snapshot()
	snapshot["error"] = map[string]interface{}{
		"status":       "failed",
		"failing_step": runErr.FailingStep,
		"error_detail": runErr.Detail,
	}

	e.archive(ctx, &runstore.Record{
		RunID:       ec.RunID(),
		Pipeline:    def.Name,
		Status:      string(StatusFailed),
		FailingStep: runErr.FailingStep,
		ErrorDetail: runErr.Detail,
		Context:     marshalSnapshot(snapshot),
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	})

	return &RunResult{
		RunID:      ec.RunID(),
		Pipeline:   def.Name,
		Status:     StatusFailed,
		Error:      runErr,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

func (e *Engine) notifyFailure(ctx context.Context, ec *ExecutionContext, def *Definition, input map[string]interface{}, runErr *RunError) {
	n, ok := e.notifiers.Get(def.OnFailure.Notifier)
	if !ok {
		e.logger.Error("on-failure notifier not registered",
			"pipeline", def.Name, "notifier", def.OnFailure.Notifier)
		return
	}

	stackID := ""
	if def.OnFailure.StackIDInput != "" {
		if v, ok := input[def.OnFailure.StackIDInput]; ok {
			stackID = fmt.Sprintf("%v", v)
		}
	}

	notice := &notify.FailureNotice{
		Environment: e.environment,
		Pipeline:    def.Name,
		RunID:       ec.RunID(),
		FailingStep: runErr.FailingStep,
		StackID:     stackID,
		Detail:      runErr.Detail,
	}

	// Delivery failure must not mask the run failure
	if err := n.NotifyFailure(ctx, notice); err != nil {
		e.logger.Error("failed to deliver failure notification",
			"pipeline", def.Name, "run_id", ec.RunID(), "error", err)
	}
}

// archive is best-effort: an unavailable archive never changes a run's outcome
func (e *Engine) archive(ctx context.Context, record *runstore.Record) {
	// The run's own budget may already be exhausted
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := e.store.Save(ctx, record); err != nil {
		e.logger.Error("failed to archive run",
			"run_id", record.RunID, "pipeline", record.Pipeline, "error", err)
	}
}

func stepRetry(step *Step, policy *config.PipelineConfig) config.RetryConfig {
	var retry config.RetryConfig
	switch {
	case step.Retry != nil:
		retry = *step.Retry
	case policy != nil:
		retry = policy.Retry
	}
	retry.SetDefaults()
	return retry
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func marshalSnapshot(snapshot map[string]interface{}) []byte {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return data
}
