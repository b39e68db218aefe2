package catalog

import (
	"time"

	"github.com/stepchain/stepchain/pipeline"
)

// materialConstraints is the fixed constraint set applied to every inverse
// design request
var materialConstraints = map[string]interface{}{
	"toxicity":      "low",
	"cost":          "medium",
	"rare_elements": "avoid",
}

// MaterialsDesign builds the materials-design pipeline: property targets are
// derived from the requirements, candidate materials are designed and
// ranked, an experiment plan with resource estimates is produced, and a
// final report aggregates every result.
func MaterialsDesign() (*pipeline.Definition, error) {
	return pipeline.NewBuilder(PipelineMaterials).
		Description("Materials inverse design and experiment planning").
		RequireInput("requirements", "user_id").
		Timeout(24 * time.Hour).
		Transform("Initialize",
			pipeline.NewTemplate(
				pipeline.RunID("session_id"),
				pipeline.FromInput("requirements", "requirements"),
				pipeline.FromInput("user_id", "user_id"),
				pipeline.Timestamp("timestamp"),
			),
			"init_result", "session_id", "requirements", "user_id", "timestamp").
		Invoke("PropertyTargetSetting", CollaboratorPropertyTarget,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "set_target_properties"),
				pipeline.FromResult("requirements", "init_result", "requirements"),
				pipeline.FromResult("session_id", "init_result", "session_id"),
			),
			"target_properties_result", "status", "session_id", "target_properties", "s3_key").
		Invoke("MaterialInverseDesign", CollaboratorInverseDesign,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "design_materials"),
				pipeline.FromResult("target_properties", "target_properties_result", "target_properties"),
				pipeline.Literal("constraints", materialConstraints),
				pipeline.FromResult("session_id", "init_result", "session_id"),
			),
			"inverse_design_result", "status", "session_id", "candidate_materials", "s3_key").
		Invoke("RankCandidates", CollaboratorInverseDesign,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "rank_candidates"),
				pipeline.FromResult("candidate_materials", "inverse_design_result", "candidate_materials"),
				pipeline.FromResult("session_id", "init_result", "session_id"),
			),
			"ranking_result", "status", "session_id", "ranked_materials", "s3_key").
		Invoke("ExperimentPlanning", CollaboratorExperimentPlanning,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "create_experiment_plan"),
				pipeline.FromResult("ranked_materials", "ranking_result", "ranked_materials"),
				pipeline.FromResult("session_id", "init_result", "session_id"),
			),
			"experiment_plan_result", "status", "session_id", "experiment_plan", "s3_key").
		Invoke("EstimateResources", CollaboratorExperimentPlanning,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "estimate_resources"),
				pipeline.FromResult("experiment_plan", "experiment_plan_result", "experiment_plan"),
				pipeline.FromResult("session_id", "init_result", "session_id"),
			),
			"resource_estimate_result", "status", "session_id", "resource_estimate", "s3_key").
		Aggregate("GenerateReport", generateReport,
			"report",
			"session_id", "requirements", "target_properties", "candidate_materials",
			"ranked_materials", "experiment_plan", "resource_estimate", "generated_at").
		Build()
}

// generateReport assembles the final materials report from every prior
// step's recorded result. Pure aggregation, no external call.
func generateReport(ec *pipeline.ExecutionContext) (map[string]interface{}, error) {
	report := map[string]interface{}{
		"session_id":   ec.RunID(),
		"generated_at": ec.Timestamp(),
	}

	sources := []struct {
		slot string
		path string
		key  string
	}{
		{"init_result", "requirements", "requirements"},
		{"target_properties_result", "target_properties", "target_properties"},
		{"inverse_design_result", "candidate_materials", "candidate_materials"},
		{"ranking_result", "ranked_materials", "ranked_materials"},
		{"experiment_plan_result", "experiment_plan", "experiment_plan"},
		{"resource_estimate_result", "resource_estimate", "resource_estimate"},
	}
	for _, src := range sources {
		value, ok := ec.Lookup(src.slot, src.path)
		if !ok {
			return nil, &pipeline.PayloadError{
				Step:    "GenerateReport",
				Field:   src.key,
				Path:    src.slot + "." + src.path,
				Message: "result path does not resolve",
			}
		}
		report[src.key] = value
	}

	return report, nil
}
