// Package catalog defines the built-in pipelines: business development,
// CloudFormation failure analysis, and materials design. Each definition is
// a fixed, linear chain whose payload wiring mirrors the collaborator
// contracts it drives.
package catalog

import (
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/pipeline"
)

// Pipeline names
const (
	PipelineBusinessDev = "bizdev"
	PipelineCfnAnalysis = "cfn-analysis"
	PipelineMaterials   = "materials"
)

// Collaborator names the catalog pipelines expect to find registered
const (
	CollaboratorProductManager     = "product-manager"
	CollaboratorArchitect          = "architect"
	CollaboratorEngineer           = "engineer"
	CollaboratorCloudArchitect     = "cloud-architect"
	CollaboratorPropertyTarget     = "property-target"
	CollaboratorInverseDesign      = "inverse-design"
	CollaboratorExperimentPlanning = "experiment-planning"
)

// DefaultNotifier is used by the CloudFormation pipeline when its
// configuration names no notifier
const DefaultNotifier = "default"

// Definitions builds every catalog pipeline and returns them registered.
// Pipeline configuration only tunes policy (notifier choice); the step
// graphs are fixed.
func Definitions(cfg *config.Config) (*pipeline.Registry, error) {
	cfnNotifier := DefaultNotifier
	if cfg != nil {
		if pc, ok := cfg.GetPipeline(PipelineCfnAnalysis); ok && pc.Notifier != "" {
			cfnNotifier = pc.Notifier
		}
	}

	reg := pipeline.NewRegistry()
	builders := []func() (*pipeline.Definition, error){
		BusinessDev,
		func() (*pipeline.Definition, error) { return CfnAnalysis(cfnNotifier) },
		MaterialsDesign,
	}
	for _, build := range builders {
		def, err := build()
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterDefinition(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
