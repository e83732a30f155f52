package provider

import (
	"sort"

	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/model"
	"go.uber.org/zap"
)

// Factory constructs a provider variant from its configuration.
type Factory func(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) RateProvider

// Registry maps provider names to factories. It replaces a hardcoded switch:
// adding a variant means one Register call at startup.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in provider variants.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("frankfurter", func(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) RateProvider {
		return NewFrankfurter(cfg, excluded, logger)
	})
	r.Register("exchangerate-host", func(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) RateProvider {
		return NewRateHost(cfg, excluded, logger)
	})
	r.Register("openexchange", func(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) RateProvider {
		return NewOpenExchange(cfg, excluded, logger)
	})
	return r
}

// Register adds a factory under a name, overwriting any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds the named provider or fails with UnknownProvider.
func (r *Registry) New(name string, cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) (RateProvider, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, model.NewError(model.KindUnknownProvider, "no provider registered under %q", name)
	}
	return f(cfg, excluded, logger), nil
}

// Selector resolves the single active provider and enumerates enabled ones.
// Resolution happens once, at construction; a bad active-provider name is a
// configuration error surfaced here, not per request.
type Selector struct {
	active    RateProvider
	providers []RateProvider
}

// NewSelector builds every enabled provider (plus the active one, which must
// name a known variant) from configuration, in priority order. wrap, when
// non-nil, decorates each constructed provider; it is how the resilience
// layer attaches without the selector knowing about it.
func NewSelector(cfg *config.Config, registry *Registry, excluded model.ExcludedSet, logger *zap.Logger, wrap func(RateProvider) RateProvider) (*Selector, error) {
	ordered := make([]config.ProviderConfig, len(cfg.Providers))
	copy(ordered, cfg.Providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	s := &Selector{}
	for _, pc := range ordered {
		if !pc.Enabled && pc.Name != cfg.ActiveProvider {
			continue
		}
		built, err := registry.New(pc.Name, pc, excluded, logger)
		if err != nil {
			return nil, err
		}
		if wrap != nil {
			built = wrap(built)
		}
		if pc.Enabled {
			s.providers = append(s.providers, built)
		}
		if pc.Name == cfg.ActiveProvider {
			s.active = built
		}
	}

	if s.active == nil {
		return nil, model.NewError(model.KindUnknownProvider, "active provider %q is not configured", cfg.ActiveProvider)
	}
	return s, nil
}

// Active returns the configured active provider.
func (s *Selector) Active() RateProvider {
	return s.active
}

// All returns the enabled providers in priority order.
func (s *Selector) All() []RateProvider {
	out := make([]RateProvider, len(s.providers))
	copy(out, s.providers)
	return out
}
