package notify

import (
	"log/slog"

	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/registry"
)

// ============================================================================
// NOTIFIER REGISTRY
// ============================================================================

// Registry manages the notification channels available to pipelines
type Registry struct {
	*registry.BaseRegistry[Notifier]
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Notifier](),
	}
}

// RegisterNotifier registers a notifier under its own name
func (r *Registry) RegisterNotifier(n Notifier) error {
	return r.Register(n.Name(), n)
}

// BuildRegistry constructs a registry from notifier configuration
func BuildRegistry(configs map[string]config.NotifierConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()

	for name, cfg := range configs {
		var n Notifier
		switch cfg.Type {
		case "webhook":
			n = NewWebhookNotifierFromConfig(name, &cfg)
		default:
			n = NewLogNotifier(name, logger)
		}
		if err := reg.RegisterNotifier(n); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
