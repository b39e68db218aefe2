package pipeline

import (
	"github.com/stepchain/stepchain/registry"
)

// ============================================================================
// PIPELINE REGISTRY
// ============================================================================

// Registry manages the pipeline definitions available for triggering
type Registry struct {
	*registry.BaseRegistry[*Definition]
}

// NewRegistry creates a new pipeline registry
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[*Definition](),
	}
}

// RegisterDefinition registers a definition under its own name
func (r *Registry) RegisterDefinition(def *Definition) error {
	if err := r.Register(def.Name, def); err != nil {
		return NewPipelineError("registry", "register", "failed to register pipeline", err)
	}
	return nil
}
