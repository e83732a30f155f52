package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/model"
	"go.uber.org/zap"
)

// Frankfurter talks to a frankfurter-style API: no API key, date-path
// endpoints and native range support via /{start}..{end}.
type Frankfurter struct {
	upstream
}

// NewFrankfurter creates the frankfurter provider variant.
func NewFrankfurter(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) *Frankfurter {
	return &Frankfurter{
		upstream: newUpstream(cfg.Name, cfg.BaseURL, cfg.APIKey, excluded, logger),
	}
}

type frankfurterResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[model.Code]json.Number `json:"rates"`
}

type frankfurterRangeResponse struct {
	Base      string                                `json:"base"`
	StartDate string                                `json:"start_date"`
	EndDate   string                                `json:"end_date"`
	Rates     map[string]map[model.Code]json.Number `json:"rates"`
}

func (p *Frankfurter) Name() string {
	return p.name
}

func (p *Frankfurter) FetchLatest(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	return p.fetchTable(ctx, "latest", base, symbols)
}

func (p *Frankfurter) FetchHistorical(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	return p.fetchTable(ctx, date.Format(DateKey), base, symbols)
}

func (p *Frankfurter) FetchRange(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, model.NewError(model.KindRateUnavailable, "invalid range: %s after %s", start.Format(DateKey), end.Format(DateKey))
	}

	endpoint := fmt.Sprintf("%s..%s", start.Format(DateKey), end.Format(DateKey))
	var resp frankfurterRangeResponse
	if err := p.getJSON(ctx, p.endpointURL(endpoint, base, symbols), &resp); err != nil {
		return nil, err
	}

	result := make(map[string]model.RateTable, len(resp.Rates))
	for day, quotes := range resp.Rates {
		observedAt, err := time.Parse(DateKey, day)
		if err != nil {
			p.logger.Debug("Dropping undated range entry", zap.String("provider", p.name), zap.String("date", day))
			continue
		}
		table, err := p.tableFromQuotes(base, quotes, observedAt)
		if err != nil {
			p.logger.Warn("Skipping day in range response",
				zap.String("provider", p.name),
				zap.String("date", day),
				zap.Error(err),
			)
			continue
		}
		result[day] = table
	}
	return result, nil
}

func (p *Frankfurter) FetchPair(ctx context.Context, from, to model.Code) (*model.Rate, error) {
	if err := p.checkCurrencies(from, to); err != nil {
		return nil, err
	}
	table, err := p.fetchTable(ctx, "latest", from, []model.Code{to})
	if err != nil {
		if model.IsKind(err, model.KindRateUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return narrowToPair(table, to), nil
}

func (p *Frankfurter) fetchTable(ctx context.Context, endpoint string, base model.Code, symbols []model.Code) (model.RateTable, error) {
	var resp frankfurterResponse
	if err := p.getJSON(ctx, p.endpointURL(endpoint, base, symbols), &resp); err != nil {
		return nil, err
	}

	observedAt := time.Now().UTC()
	if parsed, err := time.Parse(DateKey, resp.Date); err == nil {
		observedAt = parsed
	}
	return p.tableFromQuotes(base, resp.Rates, observedAt)
}

func (p *Frankfurter) endpointURL(endpoint string, base model.Code, symbols []model.Code) string {
	q := url.Values{}
	q.Set("from", base.String())
	if len(symbols) > 0 {
		q.Set("to", csvSymbols(symbols))
	}
	return fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, q.Encode())
}
