package catalog

import (
	"time"

	"github.com/stepchain/stepchain/pipeline"
)

// CfnAnalysis builds the CloudFormation failure-analysis pipeline: a stack
// failure event is parsed into structured fields, the cloud architect
// analyzes the failure, and the analysis is delivered as a notification.
// This pipeline's whole purpose is proactive notification, so it also
// notifies on failure through the given notifier.
func CfnAnalysis(notifier string) (*pipeline.Definition, error) {
	return pipeline.NewBuilder(PipelineCfnAnalysis).
		Description("CloudFormation stack failure analysis and notification").
		RequireInput("stackName", "logicalResourceId", "resourceType", "statusReason", "template").
		Timeout(30 * time.Minute).
		OnFailureNotify(notifier, "stackName").
		Transform("ParseCfnEvent",
			pipeline.NewTemplate(
				pipeline.FromInput("stack_id", "stackName"),
				pipeline.FromInput("stack_name", "stackName"),
				pipeline.FromInput("logical_resource_id", "logicalResourceId"),
				pipeline.FromInput("resource_type", "resourceType"),
				pipeline.FromInput("status_reason", "statusReason"),
				pipeline.FromInput("template", "template"),
				pipeline.Timestamp("timestamp"),
			),
			"parsed_event",
			"stack_id", "stack_name", "logical_resource_id", "resource_type",
			"status_reason", "template", "timestamp").
		Invoke("InvokeCloudArchitect", CollaboratorCloudArchitect,
			pipeline.NewTemplate(
				pipeline.Literal("process_type", "analyze_cfn_failure"),
				pipeline.FromResult("stack_id", "parsed_event", "stack_id"),
				pipeline.FromResult("stack_name", "parsed_event", "stack_name"),
				pipeline.FromResult("status_reason", "parsed_event", "status_reason"),
				pipeline.FromResult("template_info", "parsed_event", "template"),
				pipeline.Formatted("requirement",
					"CloudFormation stack %s failed while provisioning %s (%s): %s",
					pipeline.FromResult("", "parsed_event", "stack_name"),
					pipeline.FromResult("", "parsed_event", "logical_resource_id"),
					pipeline.FromResult("", "parsed_event", "resource_type"),
					pipeline.FromResult("", "parsed_event", "status_reason"),
				),
			),
			"architecture_result", "status", "stack_id", "stack_name", "analysis_id", "analysis", "s3_key").
		Transform("MapToNotification",
			pipeline.NewTemplate(
				pipeline.FromResult("stack_id", "parsed_event", "stack_id"),
				pipeline.FromResult("analysis_id", "architecture_result", "analysis_id"),
				pipeline.FromResult("s3_key", "architecture_result", "s3_key"),
				pipeline.FromResult("status", "architecture_result", "status"),
				pipeline.FromResult("analysis_summary", "architecture_result", "analysis"),
			),
			"notification_payload", "stack_id", "analysis_id", "s3_key", "status", "analysis_summary").
		Notify("SendNotification", notifier,
			pipeline.NewTemplate(
				pipeline.FromResult("stack_id", "notification_payload", "stack_id"),
				pipeline.FromResult("analysis_id", "notification_payload", "analysis_id"),
				pipeline.FromResult("s3_key", "notification_payload", "s3_key"),
				pipeline.FromResult("status", "notification_payload", "status"),
				pipeline.FromResult("analysis_summary", "notification_payload", "analysis_summary"),
			),
			"notification_result", "status", "notifier", "subject").
		Build()
}
