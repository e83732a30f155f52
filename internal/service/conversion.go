package service

import (
	"context"
	"time"

	"github.com/kvachev/fx-rate-service/internal/cache"
	"github.com/kvachev/fx-rate-service/internal/metrics"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/kvachev/fx-rate-service/internal/provider"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConversionService is the core engine: it validates input, reads the smart
// cache first and falls back to the active provider, then does the
// arithmetic. It is the only component that populates the cache.
type ConversionService struct {
	cache    *cache.SmartCache
	selector *provider.Selector
	excluded model.ExcludedSet
	logger   *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewConversionService wires the engine.
func NewConversionService(c *cache.SmartCache, selector *provider.Selector, excluded model.ExcludedSet, logger *zap.Logger, m *metrics.Metrics) *ConversionService {
	return &ConversionService{
		cache:    c,
		selector: selector,
		excluded: excluded,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("conversion-service"),
	}
}

// Convert converts amount from one currency to another, rounding to the
// target currency's canonical decimal places.
func (s *ConversionService) Convert(ctx context.Context, amount decimal.Decimal, rawFrom, rawTo string) (*model.ConversionResult, error) {
	ctx, span := s.tracer.Start(ctx, "Convert")
	defer span.End()

	from, err := s.normalizeCode(rawFrom)
	if err != nil {
		return nil, err
	}
	to, err := s.normalizeCode(rawTo)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("currency.from", from.String()),
		attribute.String("currency.to", to.String()),
	)

	if !amount.IsPositive() {
		return nil, model.NewError(model.KindInvalidAmount, "amount must be positive, got %s", amount)
	}

	// Identity conversion never touches the cache or a provider.
	if from == to {
		if s.metrics != nil {
			s.metrics.RecordConversion(from.String(), to.String(), "success")
		}
		return &model.ConversionResult{
			Amount:          amount,
			From:            from,
			To:              to,
			ConvertedAmount: amount,
			Rate:            decimal.NewFromInt(1),
			RateTimestamp:   time.Now().UTC(),
			RateSource:      model.SourceDirect,
		}, nil
	}

	rate, err := s.resolvePairRate(ctx, from, to)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordConversion(from.String(), to.String(), "error")
		}
		return nil, err
	}

	converted := amount.Mul(rate.Value).Round(to.DecimalPlaces())
	if s.metrics != nil {
		s.metrics.RecordConversion(from.String(), to.String(), "success")
	}
	return &model.ConversionResult{
		Amount:          amount,
		From:            from,
		To:              to,
		ConvertedAmount: converted,
		Rate:            rate.Value,
		RateTimestamp:   rate.ObservedAt,
		RateSource:      rate.Source,
	}, nil
}

// resolvePairRate answers from the cache's triangulation first, then asks
// the active provider for the single pair. Pair-level fetches do not warm
// the cache; only table fetches do.
func (s *ConversionService) resolvePairRate(ctx context.Context, from, to model.Code) (*model.Rate, error) {
	cached, err := s.cache.GetPairRate(ctx, from, to)
	if err != nil {
		s.logger.Warn("Cache lookup failed", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	rate, err := s.selector.Active().FetchPair(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, model.NewError(model.KindRateUnavailable, "no rate available for %s/%s", from, to)
	}
	return rate, nil
}

// GetLatestRates returns the latest table for base. The upstream fetch is
// always unfiltered so the cache holds the complete table; the caller's
// symbol filter applies to the response only.
func (s *ConversionService) GetLatestRates(ctx context.Context, rawBase string, rawSymbols []string) (model.RateTable, error) {
	ctx, span := s.tracer.Start(ctx, "GetLatestRates")
	defer span.End()

	start := time.Now()
	base, symbols, err := s.normalizeRequest(rawBase, rawSymbols)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("currency.base", base.String()))

	table, err := s.cache.GetLatestTable(ctx, base)
	if err != nil {
		s.logger.Warn("Cache lookup failed", zap.Error(err))
	}
	if table == nil {
		table, err = s.selector.Active().FetchLatest(ctx, base, nil)
		if err != nil {
			s.recordRateRequest("latest", "error", start)
			return nil, err
		}
		if cacheErr := s.cache.SetLatestTable(ctx, base, table, 0); cacheErr != nil {
			s.logger.Warn("Failed to cache rate table",
				zap.String("base", base.String()),
				zap.Error(cacheErr),
			)
		}
	}

	s.recordRateRequest("latest", "success", start)
	return table.Filter(symbols), nil
}

// GetHistoricalRates returns the table for base on a given day. Historical
// data is immutable upstream but requested rarely, so it is not cached.
func (s *ConversionService) GetHistoricalRates(ctx context.Context, date time.Time, rawBase string, rawSymbols []string) (model.RateTable, error) {
	ctx, span := s.tracer.Start(ctx, "GetHistoricalRates")
	defer span.End()

	start := time.Now()
	base, symbols, err := s.normalizeRequest(rawBase, rawSymbols)
	if err != nil {
		return nil, err
	}

	table, err := s.selector.Active().FetchHistorical(ctx, date, base, symbols)
	if err != nil {
		s.recordRateRequest("historical", "error", start)
		return nil, err
	}
	s.recordRateRequest("historical", "success", start)
	return table, nil
}

// GetTimeSeries returns day-keyed tables for [startDate, endDate]. Days the
// provider could not serve are omitted rather than failing the request.
func (s *ConversionService) GetTimeSeries(ctx context.Context, startDate, endDate time.Time, rawBase string, rawSymbols []string) (map[string]model.RateTable, error) {
	ctx, span := s.tracer.Start(ctx, "GetTimeSeries")
	defer span.End()

	start := time.Now()
	base, symbols, err := s.normalizeRequest(rawBase, rawSymbols)
	if err != nil {
		return nil, err
	}

	series, err := s.selector.Active().FetchRange(ctx, startDate, endDate, base, symbols)
	if err != nil {
		s.recordRateRequest("timeseries", "error", start)
		return nil, err
	}
	s.recordRateRequest("timeseries", "success", start)
	return series, nil
}

// CheckSupport validates a single currency code.
func (s *ConversionService) CheckSupport(raw string) error {
	_, err := s.normalizeCode(raw)
	return err
}

// IsSupported reports whether the code is usable anywhere in the core.
func (s *ConversionService) IsSupported(raw string) bool {
	return s.CheckSupport(raw) == nil
}

// HomeCurrency returns the triangulation reference currency.
func (s *ConversionService) HomeCurrency() model.Code {
	return s.cache.Home()
}

// ExcludedCurrencies returns the codes rejected everywhere in the core.
func (s *ConversionService) ExcludedCurrencies() []model.Code {
	return s.excluded.Codes()
}

// Health reports cache-store reachability.
func (s *ConversionService) Health(ctx context.Context) error {
	return s.cache.Health(ctx)
}

func (s *ConversionService) normalizeCode(raw string) (model.Code, error) {
	code := model.Normalize(raw)
	if !code.IsWellFormed() {
		return "", model.NewError(model.KindInvalidCurrency, "malformed currency code %q", raw)
	}
	if s.excluded.Contains(code) {
		return "", model.NewError(model.KindInvalidCurrency, "currency %s is not supported", code)
	}
	return code, nil
}

func (s *ConversionService) normalizeRequest(rawBase string, rawSymbols []string) (model.Code, []model.Code, error) {
	base, err := s.normalizeCode(rawBase)
	if err != nil {
		return "", nil, err
	}
	symbols := make([]model.Code, 0, len(rawSymbols))
	for _, raw := range rawSymbols {
		code, err := s.normalizeCode(raw)
		if err != nil {
			return "", nil, err
		}
		symbols = append(symbols, code)
	}
	return base, symbols, nil
}

func (s *ConversionService) recordRateRequest(op, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRateRequest(op, status, time.Since(start).Seconds())
	}
}
