package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DateKey is the map key layout for range results.
const DateKey = "2006-01-02"

// RateProvider is the capability every upstream rate source implements.
// Implementations map their own wire format into the common model; upstream
// fields that are not well-formed, known currency codes are dropped silently.
type RateProvider interface {
	// Name returns the provider name used in config, logs and rate sources.
	Name() string

	// FetchLatest fetches the current rate table for base. A non-empty
	// symbols list narrows the upstream request, never the cache.
	FetchLatest(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error)

	// FetchHistorical fetches the rate table for base on a given day.
	FetchHistorical(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error)

	// FetchRange fetches tables for every day in [start, end], keyed by
	// DateKey. Providers without native range support synthesize the result
	// day by day; failed days are logged and omitted.
	FetchRange(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error)

	// FetchPair fetches a single rate. Returns (nil, nil) when the upstream
	// has no data for the pair.
	FetchPair(ctx context.Context, from, to model.Code) (*model.Rate, error)
}

// upstream carries the pieces shared by all HTTP provider variants.
type upstream struct {
	name     string
	baseURL  string
	apiKey   string
	client   *http.Client
	excluded model.ExcludedSet
	logger   *zap.Logger
}

func newUpstream(name, baseURL, apiKey string, excluded model.ExcludedSet, logger *zap.Logger) upstream {
	return upstream{
		name:     name,
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		excluded: excluded,
		logger:   logger,
	}
}

// checkCurrencies rejects excluded or malformed codes before any I/O.
func (u *upstream) checkCurrencies(codes ...model.Code) error {
	for _, c := range codes {
		if !c.IsWellFormed() {
			return model.NewError(model.KindInvalidCurrency, "malformed currency code %q", c)
		}
		if u.excluded.Contains(c) {
			return model.NewError(model.KindInvalidCurrency, "currency %s is not supported", c)
		}
	}
	return nil
}

func (u *upstream) checkRequest(base model.Code, symbols []model.Code) error {
	if err := u.checkCurrencies(base); err != nil {
		return err
	}
	return u.checkCurrencies(symbols...)
}

// getJSON issues a GET and decodes the body, classifying failures so the
// resilience wrapper can tell retryable from permanent ones. Timeouts,
// connection failures and 5xx responses are transient; 4xx responses and
// undecodable bodies are not.
func (u *upstream) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.WrapError(model.KindRateUnavailable, err, "%s: building request", u.name)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return model.WrapError(model.KindTransientUpstream, err, "%s: request failed", u.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return model.NewError(model.KindTransientUpstream, "%s: upstream returned status %d", u.name, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return model.NewError(model.KindRateUnavailable, "%s: upstream returned status %d", u.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.WrapError(model.KindRateUnavailable, err, "%s: decoding response", u.name)
	}
	return nil
}

// tableFromQuotes converts an upstream code->value map into a RateTable,
// silently dropping entries that are not known, non-excluded currencies.
func (u *upstream) tableFromQuotes(base model.Code, quotes map[model.Code]json.Number, observedAt time.Time) (model.RateTable, error) {
	table := make(model.RateTable, len(quotes))
	for raw, num := range quotes {
		code := model.Normalize(string(raw))
		if !code.IsWellFormed() || u.excluded.Contains(code) || code == base {
			continue
		}
		value, err := decimal.NewFromString(num.String())
		if err != nil {
			u.logger.Debug("Dropping unparseable rate",
				zap.String("provider", u.name),
				zap.String("currency", code.String()),
				zap.String("value", num.String()),
			)
			continue
		}
		table[code] = model.Rate{
			From:       base,
			To:         code,
			Value:      value,
			ObservedAt: observedAt,
			Source:     u.name,
		}
	}
	if len(table) == 0 {
		return nil, model.NewError(model.KindRateUnavailable, "%s: no usable rates for base %s", u.name, base)
	}
	return table, nil
}

// narrowToPair reduces a fetched table to the single requested rate.
func narrowToPair(table model.RateTable, to model.Code) *model.Rate {
	if rate, ok := table[to]; ok {
		return &rate
	}
	return nil
}

func csvSymbols(symbols []model.Code) string {
	out := ""
	for i, s := range symbols {
		if i > 0 {
			out += ","
		}
		out += s.String()
	}
	return out
}

// synthesizeRange builds a range result from per-day historical fetches for
// providers without native range support. A failed day is logged and omitted
// rather than failing the whole request; cancellation aborts immediately.
func synthesizeRange(ctx context.Context, p RateProvider, logger *zap.Logger, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
	if end.Before(start) {
		return nil, model.NewError(model.KindRateUnavailable, "invalid range: %s after %s", start.Format(DateKey), end.Format(DateKey))
	}

	result := make(map[string]model.RateTable)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		table, err := p.FetchHistorical(ctx, day, base, symbols)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if model.IsKind(err, model.KindInvalidCurrency) {
				return nil, err
			}
			logger.Warn("Skipping day in range fetch",
				zap.String("provider", p.Name()),
				zap.String("date", day.Format(DateKey)),
				zap.Error(err),
			)
			continue
		}
		result[day.Format(DateKey)] = table
	}
	return result, nil
}
