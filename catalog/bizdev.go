package catalog

import (
	"time"

	"github.com/stepchain/stepchain/pipeline"
)

// BusinessDev builds the business-development pipeline: a requirement is
// analyzed, elaborated into user stories, competitive analysis and a PRD,
// then turned into an architecture, an implementation, and a code review.
// Each artifact's identifier threads into the steps that build on it.
func BusinessDev() (*pipeline.Definition, error) {
	return pipeline.NewBuilder(PipelineBusinessDev).
		Description("Requirement to reviewed implementation").
		RequireInput("requirement", "user_id").
		Timeout(24 * time.Hour).
		Transform("Initialize",
			pipeline.NewTemplate(
				pipeline.RunID("project_id"),
				pipeline.FromInput("requirement", "requirement"),
				pipeline.FromInput("user_id", "user_id"),
				pipeline.Timestamp("timestamp"),
			),
			"init_result", "project_id", "requirement", "user_id", "timestamp").
		Invoke("ProcessRequirement", CollaboratorProductManager,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "analyze_requirement"),
				pipeline.FromResult("requirement", "init_result", "requirement"),
				pipeline.FromResult("user_id", "init_result", "user_id"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"analysis_result", "status", "project_id", "analysis_id", "analysis", "s3_key").
		Invoke("CreateUserStories", CollaboratorProductManager,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "create_user_stories"),
				pipeline.FromResult("requirement", "init_result", "requirement"),
				pipeline.FromResult("analysis_id", "analysis_result", "analysis_id"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"user_stories_result", "status", "stories_id", "user_stories", "s3_key").
		Invoke("CreateCompetitiveAnalysis", CollaboratorProductManager,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "create_competitive_analysis"),
				pipeline.FromResult("requirement", "init_result", "requirement"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"competitive_analysis_result", "status", "analysis_id", "competitive_analysis", "s3_key").
		Invoke("CreatePRD", CollaboratorProductManager,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "create_product_requirement_doc"),
				pipeline.FromResult("requirement", "init_result", "requirement"),
				pipeline.FromResult("stories_id", "user_stories_result", "stories_id"),
				pipeline.FromResult("competitive_analysis_id", "competitive_analysis_result", "analysis_id"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"prd_result", "status", "prd_id", "prd", "s3_key").
		Invoke("CreateArchitecture", CollaboratorArchitect,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "create_architecture"),
				pipeline.FromResult("requirement", "init_result", "requirement"),
				pipeline.FromResult("prd_id", "prd_result", "prd_id"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"architecture_result", "status", "architecture_id", "architecture", "s3_key").
		Invoke("ImplementCode", CollaboratorEngineer,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "implement_code"),
				pipeline.FromResult("requirement", "init_result", "requirement"),
				pipeline.FromResult("prd_id", "prd_result", "prd_id"),
				pipeline.FromResult("architecture_id", "architecture_result", "architecture_id"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"implementation_result", "status", "implementation_id", "implementation", "s3_key").
		Invoke("ReviewCode", CollaboratorEngineer,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "review_code"),
				pipeline.FromResult("implementation_id", "implementation_result", "implementation_id"),
				pipeline.FromResult("project_id", "init_result", "project_id"),
			),
			"review_result", "status", "review_id", "review", "s3_key").
		Build()
}
