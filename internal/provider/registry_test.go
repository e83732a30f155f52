package provider

import (
	"testing"

	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stubFactory(name string) Factory {
	return func(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) RateProvider {
		return &stubProvider{name: name}
	}
}

func selectorConfig(active string, providers ...config.ProviderConfig) *config.Config {
	return &config.Config{
		ActiveProvider: active,
		Providers:      providers,
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.New("nope", config.ProviderConfig{Name: "nope"}, nil, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, model.KindUnknownProvider, model.KindOf(err))
}

func TestSelectorResolvesActiveProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", stubFactory("alpha"))
	r.Register("beta", stubFactory("beta"))

	cfg := selectorConfig("beta",
		config.ProviderConfig{Name: "alpha", Enabled: true, Priority: 1},
		config.ProviderConfig{Name: "beta", Enabled: true, Priority: 2},
	)
	s, err := NewSelector(cfg, r, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", s.Active().Name())
}

func TestSelectorFailsOnUnknownActiveProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", stubFactory("alpha"))

	cfg := selectorConfig("missing",
		config.ProviderConfig{Name: "alpha", Enabled: true, Priority: 1},
	)
	_, err := NewSelector(cfg, r, nil, zap.NewNop(), nil)
	require.Error(t, err)
	assert.Equal(t, model.KindUnknownProvider, model.KindOf(err))
}

func TestSelectorAllReturnsEnabledInPriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", stubFactory("alpha"))
	r.Register("beta", stubFactory("beta"))
	r.Register("gamma", stubFactory("gamma"))

	cfg := selectorConfig("alpha",
		config.ProviderConfig{Name: "gamma", Enabled: true, Priority: 3},
		config.ProviderConfig{Name: "alpha", Enabled: true, Priority: 1},
		config.ProviderConfig{Name: "beta", Enabled: false, Priority: 2},
	)
	s, err := NewSelector(cfg, r, nil, zap.NewNop(), nil)
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name())
	assert.Equal(t, "gamma", all[1].Name())
}

func TestSelectorWrapsProviders(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", stubFactory("alpha"))

	wrapped := 0
	cfg := selectorConfig("alpha",
		config.ProviderConfig{Name: "alpha", Enabled: true, Priority: 1},
	)
	s, err := NewSelector(cfg, r, nil, zap.NewNop(), func(p RateProvider) RateProvider {
		wrapped++
		return p
	})
	require.NoError(t, err)
	assert.Equal(t, 1, wrapped)
	assert.Equal(t, "alpha", s.Active().Name())
}

func TestDefaultRegistryKnowsAllVariants(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"frankfurter", "exchangerate-host", "openexchange"} {
		p, err := r.New(name, config.ProviderConfig{Name: name, BaseURL: "http://example.test"}, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}
