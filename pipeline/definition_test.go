package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepchain/stepchain/config"
)

func TestBuilderValidDefinition(t *testing.T) {
	def, err := NewBuilder("bizdev").
		RequireInput("requirement", "user_id").
		Timeout(24 * time.Hour).
		Invoke("AnalyzeRequirement", "product-manager",
			NewTemplate(
				Literal("process_type", "analyze_requirement"),
				FromInput("requirement", "requirement"),
				FromInput("user_id", "user_id"),
			),
			"analysis_result", "status", "analysis_id", "analysis", "s3_key").
		Invoke("CreateUserStories", "product-manager",
			NewTemplate(
				Literal("process_type", "create_user_stories"),
				FromInput("requirement", "requirement"),
				FromResult("analysis_id", "analysis_result", "analysis_id"),
			),
			"user_stories_result", "stories_id", "user_stories", "s3_key").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "bizdev", def.Name)
	assert.Equal(t, []string{"AnalyzeRequirement", "CreateUserStories"}, def.StepNames())
	assert.Equal(t, 24*time.Hour, def.Timeout)

	step, ok := def.Step("CreateUserStories")
	require.True(t, ok)
	assert.Equal(t, "user_stories_result", step.ResultSlot)
}

func TestBuilderRejectsForwardReference(t *testing.T) {
	_, err := NewBuilder("broken").
		RequireInput("requirement").
		Invoke("First", "agent",
			NewTemplate(FromResult("prd_id", "prd_result", "prd_id")),
			"first_result", "id").
		Invoke("CreatePRD", "agent",
			NewTemplate(Literal("process_type", "create_product_requirement_doc")),
			"prd_result", "prd_id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not written by any earlier step")
}

func TestBuilderRejectsUndeclaredProducedField(t *testing.T) {
	_, err := NewBuilder("broken").
		RequireInput("requirement").
		Invoke("AnalyzeRequirement", "agent",
			NewTemplate(FromInput("requirement", "requirement")),
			"analysis_result", "analysis_id").
		Invoke("Next", "agent",
			NewTemplate(FromResult("summary", "analysis_result", "summary")),
			"next_result", "id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not produce 'summary'")
}

func TestBuilderAllowsNestedPathUnderDeclaredField(t *testing.T) {
	_, err := NewBuilder("ok").
		Invoke("Parse", "parser",
			NewTemplate(Literal("process_type", "parse")),
			"parsed_event", "detail").
		Invoke("Next", "agent",
			NewTemplate(FromResult("status", "parsed_event", "detail.status")),
			"next_result", "id").
		Build()
	require.NoError(t, err)
}

func TestBuilderRejectsUndeclaredInput(t *testing.T) {
	_, err := NewBuilder("broken").
		RequireInput("requirement").
		Invoke("First", "agent",
			NewTemplate(FromInput("user", "user_id")),
			"first_result", "id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared input 'user_id'")
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	_, err := NewBuilder("broken").
		Invoke("Step", "agent", NewTemplate(Literal("a", 1)), "slot_one", "id").
		Invoke("Step", "agent", NewTemplate(Literal("a", 1)), "slot_two", "id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step name")

	_, err = NewBuilder("broken").
		Invoke("One", "agent", NewTemplate(Literal("a", 1)), "shared_slot", "id").
		Invoke("Two", "agent", NewTemplate(Literal("a", 1)), "shared_slot", "id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already written")
}

func TestBuilderRejectsEmptyPipeline(t *testing.T) {
	_, err := NewBuilder("empty").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one step")
}

func TestBuilderWithRetry(t *testing.T) {
	def, err := NewBuilder("retrying").
		Invoke("Flaky", "agent", NewTemplate(Literal("a", 1)), "flaky_result", "id").
		WithRetry(config.RetryConfig{MaxAttempts: 3}).
		Build()
	require.NoError(t, err)

	step, _ := def.Step("Flaky")
	require.NotNil(t, step.Retry)
	assert.Equal(t, 3, step.Retry.MaxAttempts)
	assert.Equal(t, time.Second, step.Retry.InitialBackoff.Duration())
}

func TestBuilderOnFailureNotify(t *testing.T) {
	def, err := NewBuilder("cfn-analysis").
		RequireInput("stackName").
		OnFailureNotify("ops", "stackName").
		Transform("Parse", NewTemplate(FromInput("stack_name", "stackName")), "parsed_event", "stack_name").
		Build()
	require.NoError(t, err)

	require.NotNil(t, def.OnFailure)
	assert.Equal(t, "ops", def.OnFailure.Notifier)
	assert.Equal(t, "stackName", def.OnFailure.StackIDInput)
}
