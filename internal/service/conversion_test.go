package service

import (
	"context"
	"testing"
	"time"

	"github.com/kvachev/fx-rate-service/internal/cache"
	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/kvachev/fx-rate-service/internal/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockProvider implements provider.RateProvider with func fields.
type mockProvider struct {
	fetchLatestFunc     func(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error)
	fetchHistoricalFunc func(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error)
	fetchRangeFunc      func(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error)
	fetchPairFunc       func(ctx context.Context, from, to model.Code) (*model.Rate, error)
	calls               int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) FetchLatest(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
	m.calls++
	if m.fetchLatestFunc != nil {
		return m.fetchLatestFunc(ctx, base, symbols)
	}
	return nil, model.NewError(model.KindRateUnavailable, "no data")
}

func (m *mockProvider) FetchHistorical(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error) {
	m.calls++
	if m.fetchHistoricalFunc != nil {
		return m.fetchHistoricalFunc(ctx, date, base, symbols)
	}
	return nil, model.NewError(model.KindRateUnavailable, "no data")
}

func (m *mockProvider) FetchRange(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
	m.calls++
	if m.fetchRangeFunc != nil {
		return m.fetchRangeFunc(ctx, start, end, base, symbols)
	}
	return nil, model.NewError(model.KindRateUnavailable, "no data")
}

func (m *mockProvider) FetchPair(ctx context.Context, from, to model.Code) (*model.Rate, error) {
	m.calls++
	if m.fetchPairFunc != nil {
		return m.fetchPairFunc(ctx, from, to)
	}
	return nil, nil
}

func eurTable(rates map[model.Code]string) model.RateTable {
	observed := time.Date(2025, 3, 10, 16, 5, 0, 0, time.UTC)
	table := make(model.RateTable, len(rates))
	for code, value := range rates {
		table[code] = model.Rate{
			From:       "EUR",
			To:         code,
			Value:      decimal.RequireFromString(value),
			ObservedAt: observed,
			Source:     "mock",
		}
	}
	return table
}

func newTestService(t *testing.T, mock *mockProvider) (*ConversionService, *cache.SmartCache, *cache.MemoryStore) {
	t.Helper()

	excluded := model.NewExcludedSet([]string{"TRY", "RUB"})

	reg := provider.NewRegistry()
	reg.Register("mock", func(cfg config.ProviderConfig, ex model.ExcludedSet, logger *zap.Logger) provider.RateProvider {
		return mock
	})
	cfg := &config.Config{
		ActiveProvider: "mock",
		Providers:      []config.ProviderConfig{{Name: "mock", Enabled: true, Priority: 1}},
		RateTimezone:   "UTC",
		PublicationHour: 16, PublicationBuffer: 5 * time.Minute,
		BusinessHoursStart: 8, BusinessHoursEnd: 18,
		BusinessTTLCeiling: 30 * time.Minute,
		OffHoursTTLCeiling: 6 * time.Hour,
	}
	selector, err := provider.NewSelector(cfg, reg, excluded, zap.NewNop(), nil)
	require.NoError(t, err)

	policy, err := cache.NewTTLPolicy(cfg)
	require.NoError(t, err)
	store := cache.NewMemoryStore()
	smartCache := cache.NewSmartCache(store, policy, "EUR", zap.NewNop(), nil)

	return NewConversionService(smartCache, selector, excluded, zap.NewNop(), nil), smartCache, store
}

func TestConvertIdentityPair(t *testing.T) {
	mock := &mockProvider{}
	svc, _, _ := newTestService(t, mock)

	result, err := svc.Convert(context.Background(), decimal.RequireFromString("123.45"), "usd", "USD")
	require.NoError(t, err)

	assert.True(t, result.ConvertedAmount.Equal(result.Amount))
	assert.True(t, result.Rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, model.SourceDirect, result.RateSource)
	assert.Zero(t, mock.calls, "identity conversion must not touch a provider")
}

func TestConvertRejectsExcludedCurrency(t *testing.T) {
	mock := &mockProvider{}
	svc, _, store := newTestService(t, mock)

	for _, pair := range [][2]string{{"TRY", "USD"}, {"USD", "TRY"}, {"RUB", "RUB"}} {
		_, err := svc.Convert(context.Background(), decimal.NewFromInt(100), pair[0], pair[1])
		require.Error(t, err)
		assert.Equal(t, model.KindInvalidCurrency, model.KindOf(err))
	}
	assert.Zero(t, mock.calls, "excluded currencies must be rejected before any I/O")
	assert.Zero(t, store.Len())
}

func TestConvertRejectsMalformedCode(t *testing.T) {
	mock := &mockProvider{}
	svc, _, _ := newTestService(t, mock)

	for _, code := range []string{"", "EU", "EURO", "E1R"} {
		_, err := svc.Convert(context.Background(), decimal.NewFromInt(1), code, "USD")
		require.Error(t, err)
		assert.Equal(t, model.KindInvalidCurrency, model.KindOf(err))
	}
	assert.Zero(t, mock.calls)
}

func TestConvertRejectsNonPositiveAmount(t *testing.T) {
	mock := &mockProvider{}
	svc, _, _ := newTestService(t, mock)

	for _, amount := range []string{"0", "-1", "-0.01"} {
		_, err := svc.Convert(context.Background(), decimal.RequireFromString(amount), "EUR", "USD")
		require.Error(t, err)
		assert.Equal(t, model.KindInvalidAmount, model.KindOf(err))
	}
	assert.Zero(t, mock.calls)
}

func TestConvertCrossRateFromCachedTable(t *testing.T) {
	mock := &mockProvider{}
	svc, smartCache, _ := newTestService(t, mock)
	require.NoError(t, smartCache.SetLatestTable(context.Background(), "EUR", eurTable(map[model.Code]string{
		"USD": "1.1",
		"GBP": "0.8",
	}), time.Hour))

	// 100 USD -> GBP via EUR: 100 * (0.8 / 1.1) = 72.7272... -> 72.73
	result, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "USD", "GBP")
	require.NoError(t, err)
	assert.Equal(t, "72.73", result.ConvertedAmount.String())
	assert.Zero(t, mock.calls, "cached cross rate must not hit the provider")
}

func TestConvertDirectRateFromCachedTable(t *testing.T) {
	mock := &mockProvider{}
	svc, smartCache, _ := newTestService(t, mock)
	require.NoError(t, smartCache.SetLatestTable(context.Background(), "EUR", eurTable(map[model.Code]string{
		"CHF": "1.08",
	}), time.Hour))

	result, err := svc.Convert(context.Background(), decimal.NewFromInt(50), "EUR", "CHF")
	require.NoError(t, err)
	assert.True(t, result.ConvertedAmount.Equal(decimal.RequireFromString("54.00")))
}

func TestConvertRoundsToTargetPrecision(t *testing.T) {
	mock := &mockProvider{}
	svc, smartCache, _ := newTestService(t, mock)
	require.NoError(t, smartCache.SetLatestTable(context.Background(), "EUR", eurTable(map[model.Code]string{
		"JPY": "161.37",
	}), time.Hour))

	// JPY has no minor unit: result rounds to a whole number.
	result, err := svc.Convert(context.Background(), decimal.RequireFromString("10.55"), "EUR", "JPY")
	require.NoError(t, err)
	assert.Equal(t, "1702", result.ConvertedAmount.String())
}

func TestConvertFallsBackToProviderOnCacheMiss(t *testing.T) {
	mock := &mockProvider{
		fetchPairFunc: func(ctx context.Context, from, to model.Code) (*model.Rate, error) {
			return &model.Rate{
				From:       from,
				To:         to,
				Value:      decimal.RequireFromString("0.92"),
				ObservedAt: time.Now().UTC(),
				Source:     "mock",
			}, nil
		},
	}
	svc, _, store := newTestService(t, mock)

	result, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "92", result.ConvertedAmount.String())
	assert.Equal(t, "mock", result.RateSource)
	assert.Equal(t, 1, mock.calls)

	// Pair-level fetches do not warm the table cache.
	assert.Zero(t, store.Len())
}

func TestConvertRateUnavailable(t *testing.T) {
	mock := &mockProvider{} // FetchPair returns (nil, nil)
	svc, _, _ := newTestService(t, mock)

	_, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "USD", "GBP")
	require.Error(t, err)
	assert.Equal(t, model.KindRateUnavailable, model.KindOf(err))
}

func TestConvertSurfacesProviderFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		kind model.ErrorKind
	}{
		{"transient upstream", model.KindTransientUpstream},
		{"circuit open", model.KindCircuitOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockProvider{
				fetchPairFunc: func(ctx context.Context, from, to model.Code) (*model.Rate, error) {
					return nil, model.NewError(tt.kind, "boom")
				},
			}
			svc, _, _ := newTestService(t, mock)

			_, err := svc.Convert(context.Background(), decimal.NewFromInt(1), "USD", "GBP")
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
		})
	}
}

func TestGetLatestRatesFetchesFullTableAndFilters(t *testing.T) {
	var gotSymbols []model.Code
	mock := &mockProvider{
		fetchLatestFunc: func(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
			gotSymbols = symbols
			return eurTable(map[model.Code]string{"USD": "1.1", "GBP": "0.8", "CHF": "1.08"}), nil
		},
	}
	svc, _, _ := newTestService(t, mock)

	table, err := svc.GetLatestRates(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)

	// The upstream fetch is unfiltered; only the response is narrowed.
	assert.Nil(t, gotSymbols)
	require.Len(t, table, 1)
	assert.Equal(t, "1.1", table["USD"].Value.String())
}

func TestGetLatestRatesUsesCacheOnSecondCall(t *testing.T) {
	mock := &mockProvider{
		fetchLatestFunc: func(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
			return eurTable(map[model.Code]string{"USD": "1.1"}), nil
		},
	}
	svc, _, _ := newTestService(t, mock)

	_, err := svc.GetLatestRates(context.Background(), "EUR", nil)
	require.NoError(t, err)
	_, err = svc.GetLatestRates(context.Background(), "EUR", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, mock.calls, "second read must be served from cache")
}

func TestGetLatestRatesExcludedBaseCreatesNoEntry(t *testing.T) {
	mock := &mockProvider{}
	svc, _, store := newTestService(t, mock)

	_, err := svc.GetLatestRates(context.Background(), "TRY", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidCurrency, model.KindOf(err))
	assert.Zero(t, mock.calls)
	assert.Zero(t, store.Len())
}

func TestGetTimeSeriesPartialResults(t *testing.T) {
	mock := &mockProvider{
		fetchRangeFunc: func(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
			return map[string]model.RateTable{
				"2024-06-10": eurTable(map[model.Code]string{"USD": "1.07"}),
				"2024-06-12": eurTable(map[model.Code]string{"USD": "1.08"}),
			}, nil
		},
	}
	svc, _, _ := newTestService(t, mock)

	series, err := svc.GetTimeSeries(context.Background(),
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		"EUR", nil)
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestCurrencySupport(t *testing.T) {
	svc, _, _ := newTestService(t, &mockProvider{})

	assert.True(t, svc.IsSupported("usd"))
	assert.False(t, svc.IsSupported("TRY"))
	assert.False(t, svc.IsSupported("EURO"))
	assert.Equal(t, model.Code("EUR"), svc.HomeCurrency())
	assert.ElementsMatch(t, []model.Code{"TRY", "RUB"}, svc.ExcludedCurrencies())
}
