package collaborator

import (
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/registry"
)

// ============================================================================
// COLLABORATOR REGISTRY
// ============================================================================

// Registry manages the collaborators available to pipelines
type Registry struct {
	*registry.BaseRegistry[Collaborator]
}

// NewRegistry creates a new collaborator registry
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Collaborator](),
	}
}

// RegisterCollaborator registers a collaborator under its own name
func (r *Registry) RegisterCollaborator(c Collaborator) error {
	if err := r.Register(c.Name(), c); err != nil {
		return NewInvocationError(c.Name(), "register", "failed to register collaborator", err)
	}
	return nil
}

// BuildRegistry constructs a registry from collaborator configuration.
// Each configured endpoint becomes a named client.
func BuildRegistry(configs map[string]config.CollaboratorConfig) (*Registry, error) {
	reg := NewRegistry()

	for name, cfg := range configs {
		var c Collaborator
		switch cfg.Type {
		case "mock":
			c = NewMock(name)
		default:
			c = NewHTTPCollaboratorFromConfig(name, &cfg)
		}
		if err := reg.RegisterCollaborator(c); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
