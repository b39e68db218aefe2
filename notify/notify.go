// Package notify delivers human-readable run notifications. The CloudFormation
// analysis pipeline emits a success notice describing the produced analysis;
// any pipeline with an on-failure notifier emits a failure notice describing
// the failed run.
package notify

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ============================================================================
// NOTIFIER INTERFACE
// ============================================================================

// Notifier is a notification delivery channel
type Notifier interface {
	// Name returns the notifier's registered name
	Name() string

	// NotifySuccess delivers a success notice
	NotifySuccess(ctx context.Context, notice *SuccessNotice) error

	// NotifyFailure delivers a failure notice
	NotifyFailure(ctx context.Context, notice *FailureNotice) error
}

// ============================================================================
// NOTICE TYPES
// ============================================================================

// SuccessNotice describes a completed analysis. The payload fields are
// projected out of the run context by the pipeline's notify step.
type SuccessNotice struct {
	Environment string `mapstructure:"-"`
	Pipeline    string `mapstructure:"-"`
	RunID       string `mapstructure:"-"`

	StackID    string `mapstructure:"stack_id"`
	AnalysisID string `mapstructure:"analysis_id"`
	S3Key      string `mapstructure:"s3_key"`
	Status     string `mapstructure:"status"`
	Summary    string `mapstructure:"analysis_summary"`
}

// FailureNotice describes a failed run
type FailureNotice struct {
	Environment string
	Pipeline    string
	RunID       string
	FailingStep string
	StackID     string
	Detail      string
}

// DecodeSuccessNotice builds a SuccessNotice from a notify-step payload
func DecodeSuccessNotice(payload map[string]interface{}) (*SuccessNotice, error) {
	var notice SuccessNotice
	if err := mapstructure.Decode(payload, &notice); err != nil {
		return nil, fmt.Errorf("failed to decode success notice: %w", err)
	}
	return &notice, nil
}

// ============================================================================
// MESSAGE FORMATTING
// ============================================================================

// Subject returns the environment-tagged subject line for a success notice
func (n *SuccessNotice) Subject() string {
	return fmt.Sprintf("[%s] Stack Failure Analysis Completed", n.Environment)
}

// Message returns the formatted notification body for a success notice
func (n *SuccessNotice) Message() string {
	return fmt.Sprintf(
		"Stack ID: %s\nAnalysis ID: %s\nReport Location: %s\nStatus: %s\nSummary:\n%s\n",
		n.StackID, n.AnalysisID, n.S3Key, n.Status, n.Summary)
}

// Subject returns the environment-tagged subject line for a failure notice
func (n *FailureNotice) Subject() string {
	return fmt.Sprintf("[%s] Pipeline Run Failed: %s", n.Environment, n.Pipeline)
}

// Message returns the formatted notification body for a failure notice
func (n *FailureNotice) Message() string {
	return fmt.Sprintf(
		"Stack ID: %s\nError: %s\nExecution: %s\n",
		n.StackID, n.Detail, n.RunID)
}
