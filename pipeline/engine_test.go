package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepchain/stepchain/collaborator"
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/notify"
	"github.com/stepchain/stepchain/runstore"
)

// captureNotifier records delivered notices
type captureNotifier struct {
	name      string
	successes []*notify.SuccessNotice
	failures  []*notify.FailureNotice
}

func (c *captureNotifier) Name() string { return c.name }

func (c *captureNotifier) NotifySuccess(_ context.Context, n *notify.SuccessNotice) error {
	c.successes = append(c.successes, n)
	return nil
}

func (c *captureNotifier) NotifyFailure(_ context.Context, n *notify.FailureNotice) error {
	c.failures = append(c.failures, n)
	return nil
}

type engineFixture struct {
	engine        *Engine
	collaborators *collaborator.Registry
	notifiers     *notify.Registry
	notifier      *captureNotifier
	store         *runstore.MemoryStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	collaborators := collaborator.NewRegistry()
	notifiers := notify.NewRegistry()
	notifier := &captureNotifier{name: "ops"}
	require.NoError(t, notifiers.RegisterNotifier(notifier))
	store := runstore.NewMemoryStore()

	engine := NewEngine(&EngineConfig{
		Collaborators: collaborators,
		Notifiers:     notifiers,
		Store:         store,
		Environment:   "test",
	})

	return &engineFixture{
		engine:        engine,
		collaborators: collaborators,
		notifiers:     notifiers,
		notifier:      notifier,
		store:         store,
	}
}

func (f *engineFixture) registerFunc(t *testing.T, name string, fn func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)) {
	t.Helper()
	require.NoError(t, f.collaborators.RegisterCollaborator(collaborator.NewFunc(name, fn)))
}

func twoStepDefinition(t *testing.T) *Definition {
	t.Helper()
	def, err := NewBuilder("bizdev").
		RequireInput("requirement", "user_id").
		Invoke("AnalyzeRequirement", "product-manager",
			NewTemplate(
				Literal("process_type", "analyze_requirement"),
				FromInput("requirement", "requirement"),
				FromInput("user_id", "user_id"),
			),
			"analysis_result", "analysis_id", "analysis").
		Invoke("CreateUserStories", "product-manager",
			NewTemplate(
				Literal("process_type", "create_user_stories"),
				FromInput("requirement", "requirement"),
				FromResult("analysis_id", "analysis_result", "analysis_id"),
			),
			"user_stories_result", "stories_id").
		Build()
	require.NoError(t, err)
	return def
}

func TestEngineHappyPath(t *testing.T) {
	f := newEngineFixture(t)

	var payloads []map[string]interface{}
	f.registerFunc(t, "product-manager", func(_ context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		payloads = append(payloads, payload)
		switch payload["process_type"] {
		case "analyze_requirement":
			return map[string]interface{}{"analysis_id": "analysis-1", "analysis": "budget domain"}, nil
		default:
			return map[string]interface{}{"stories_id": "stories-1"}, nil
		}
	})

	result, err := f.engine.Execute(context.Background(), twoStepDefinition(t), nil, map[string]interface{}{
		"requirement": "manage household budget",
		"user_id":     "user123",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, payloads, 2)

	// Second step saw the first step's recorded result
	assert.Equal(t, "analysis-1", payloads[1]["analysis_id"])

	results := result.Output["step_results"].(map[string]interface{})
	assert.Contains(t, results, "analysis_result")
	assert.Contains(t, results, "user_stories_result")

	// Run was archived with the final context
	record, err := f.store.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", record.Status)

	var archived map[string]interface{}
	require.NoError(t, json.Unmarshal(record.Context, &archived))
	assert.Equal(t, result.RunID, archived["run_id"])
}

func TestEngineFailingStepCaptured(t *testing.T) {
	f := newEngineFixture(t)

	f.registerFunc(t, "product-manager", func(_ context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		if payload["process_type"] == "create_user_stories" {
			return nil, errors.New("model overloaded")
		}
		return map[string]interface{}{"analysis_id": "analysis-1", "analysis": "x"}, nil
	})

	result, err := f.engine.Execute(context.Background(), twoStepDefinition(t), nil, map[string]interface{}{
		"requirement": "manage household budget",
		"user_id":     "user123",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "CreateUserStories", result.Error.FailingStep)
	assert.Contains(t, result.Error.Detail, "model overloaded")

	record, err := f.store.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "failed", record.Status)
	assert.Equal(t, "CreateUserStories", record.FailingStep)

	// Failed step's slot was never written
	var archived map[string]interface{}
	require.NoError(t, json.Unmarshal(record.Context, &archived))
	results := archived["step_results"].(map[string]interface{})
	assert.Contains(t, results, "analysis_result")
	assert.NotContains(t, results, "user_stories_result")
	errInfo := archived["error"].(map[string]interface{})
	assert.Equal(t, "CreateUserStories", errInfo["failing_step"])
}

func TestEngineMissingRequiredInput(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Execute(context.Background(), twoStepDefinition(t), nil, map[string]interface{}{
		"requirement": "no user id",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required input field 'user_id' missing")
}

func TestEngineRetrySucceedsOnSecondAttempt(t *testing.T) {
	f := newEngineFixture(t)

	attempts := 0
	f.registerFunc(t, "flaky", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return map[string]interface{}{"id": "ok"}, nil
	})

	def, err := NewBuilder("retrying").
		Invoke("Flaky", "flaky", NewTemplate(Literal("process_type", "x")), "flaky_result", "id").
		WithRetry(config.RetryConfig{MaxAttempts: 2, InitialBackoff: config.Duration(time.Millisecond)}).
		Build()
	require.NoError(t, err)

	result, err := f.engine.Execute(context.Background(), def, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 2, attempts)
}

func TestEngineNoRetryByDefault(t *testing.T) {
	f := newEngineFixture(t)

	attempts := 0
	f.registerFunc(t, "flaky", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		attempts++
		return nil, errors.New("always")
	})

	def, err := NewBuilder("default-policy").
		Invoke("Flaky", "flaky", NewTemplate(Literal("process_type", "x")), "flaky_result", "id").
		Build()
	require.NoError(t, err)

	result, err := f.engine.Execute(context.Background(), def, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, attempts)
}

func TestEngineTimeout(t *testing.T) {
	f := newEngineFixture(t)

	f.registerFunc(t, "slow", func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	def, err := NewBuilder("slow-pipeline").
		Timeout(20 * time.Millisecond).
		Invoke("Slow", "slow", NewTemplate(Literal("process_type", "x")), "slow_result", "id").
		Build()
	require.NoError(t, err)

	result, err := f.engine.Execute(context.Background(), def, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "Slow", result.Error.FailingStep)
	assert.ErrorIs(t, result.Error, context.DeadlineExceeded)
}

func TestEngineFailureNotification(t *testing.T) {
	f := newEngineFixture(t)

	f.registerFunc(t, "cloud-architect", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("bedrock unavailable")
	})

	def, err := NewBuilder("cfn-analysis").
		RequireInput("stackName").
		OnFailureNotify("ops", "stackName").
		Invoke("InvokeCloudArchitect", "cloud-architect",
			NewTemplate(Literal("process_type", "analyze_cfn_failure")),
			"architecture_result", "analysis_id").
		Build()
	require.NoError(t, err)

	result, err := f.engine.Execute(context.Background(), def, nil, map[string]interface{}{
		"stackName": "demo-stack",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)

	require.Len(t, f.notifier.failures, 1)
	failure := f.notifier.failures[0]
	assert.Equal(t, "demo-stack", failure.StackID)
	assert.Equal(t, "InvokeCloudArchitect", failure.FailingStep)
	assert.Equal(t, result.RunID, failure.RunID)
	assert.Equal(t, "test", failure.Environment)
	assert.Empty(t, f.notifier.successes)
}

func TestEngineNoFailureNotificationWithoutPolicy(t *testing.T) {
	f := newEngineFixture(t)

	f.registerFunc(t, "product-manager", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	})

	result, err := f.engine.Execute(context.Background(), twoStepDefinition(t), nil, map[string]interface{}{
		"requirement": "x",
		"user_id":     "u",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Empty(t, f.notifier.failures)
}

func TestEngineNotifyStep(t *testing.T) {
	f := newEngineFixture(t)

	f.registerFunc(t, "cloud-architect", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{
			"analysis_id": "analysis-9",
			"analysis":    "The IAM role lacks ec2:RunInstances.",
			"s3_key":      "analyses/analysis-9.json",
			"status":      "success",
		}, nil
	})

	def, err := NewBuilder("cfn-analysis").
		RequireInput("stackName").
		Invoke("InvokeCloudArchitect", "cloud-architect",
			NewTemplate(
				Literal("process_type", "analyze_cfn_failure"),
				FromInput("stack_name", "stackName"),
			),
			"architecture_result", "analysis_id", "analysis", "s3_key", "status").
		Transform("MapToNotification",
			NewTemplate(
				FromInput("stack_id", "stackName"),
				FromResult("analysis_id", "architecture_result", "analysis_id"),
				FromResult("s3_key", "architecture_result", "s3_key"),
				FromResult("status", "architecture_result", "status"),
				FromResult("analysis_summary", "architecture_result", "analysis"),
			),
			"notification_payload", "stack_id", "analysis_id", "s3_key", "status", "analysis_summary").
		Notify("SendNotification", "ops",
			NewTemplate(
				FromResult("stack_id", "notification_payload", "stack_id"),
				FromResult("analysis_id", "notification_payload", "analysis_id"),
				FromResult("s3_key", "notification_payload", "s3_key"),
				FromResult("status", "notification_payload", "status"),
				FromResult("analysis_summary", "notification_payload", "analysis_summary"),
			),
			"notification_result", "status", "notifier").
		Build()
	require.NoError(t, err)

	result, err := f.engine.Execute(context.Background(), def, nil, map[string]interface{}{
		"stackName": "demo-stack",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)

	require.Len(t, f.notifier.successes, 1)
	notice := f.notifier.successes[0]
	assert.Equal(t, "demo-stack", notice.StackID)
	assert.Equal(t, "analysis-9", notice.AnalysisID)
	assert.Equal(t, "analyses/analysis-9.json", notice.S3Key)
	assert.Equal(t, "The IAM role lacks ec2:RunInstances.", notice.Summary)
	assert.Equal(t, result.RunID, notice.RunID)
}

func TestEnginePolicyTimeoutOverridesDefinition(t *testing.T) {
	f := newEngineFixture(t)

	f.registerFunc(t, "slow", func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	def, err := NewBuilder("slow-pipeline").
		Timeout(time.Hour).
		Invoke("Slow", "slow", NewTemplate(Literal("process_type", "x")), "slow_result", "id").
		Build()
	require.NoError(t, err)

	policy := &config.PipelineConfig{Timeout: config.Duration(20 * time.Millisecond)}
	policy.SetDefaults()

	start := time.Now()
	result, err := f.engine.Execute(context.Background(), def, policy, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}
