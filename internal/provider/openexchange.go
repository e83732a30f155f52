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

// OpenExchange talks to an openexchangerates.org-style API: app_id query
// parameter, ".json" endpoints and a plain code->value rates object. No
// native range support; ranges are synthesized one day at a time.
type OpenExchange struct {
	upstream
}

// NewOpenExchange creates the openexchange provider variant.
func NewOpenExchange(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) *OpenExchange {
	return &OpenExchange{
		upstream: newUpstream(cfg.Name, cfg.BaseURL, cfg.APIKey, excluded, logger),
	}
}

type openExchangeResponse struct {
	Base      string                     `json:"base"`
	Timestamp int64                      `json:"timestamp"`
	Rates     map[model.Code]json.Number `json:"rates"`
}

func (p *OpenExchange) Name() string {
	return p.name
}

func (p *OpenExchange) FetchLatest(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	return p.fetchTable(ctx, "latest.json", base, symbols)
}

func (p *OpenExchange) FetchHistorical(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	return p.fetchTable(ctx, fmt.Sprintf("historical/%s.json", date.Format(DateKey)), base, symbols)
}

func (p *OpenExchange) FetchRange(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	return synthesizeRange(ctx, p, p.logger, start, end, base, symbols)
}

func (p *OpenExchange) FetchPair(ctx context.Context, from, to model.Code) (*model.Rate, error) {
	if err := p.checkCurrencies(from, to); err != nil {
		return nil, err
	}
	table, err := p.FetchLatest(ctx, from, []model.Code{to})
	if err != nil {
		if model.IsKind(err, model.KindRateUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return narrowToPair(table, to), nil
}

func (p *OpenExchange) fetchTable(ctx context.Context, endpoint string, base model.Code, symbols []model.Code) (model.RateTable, error) {
	q := url.Values{}
	if p.apiKey != "" {
		q.Set("app_id", p.apiKey)
	}
	q.Set("base", base.String())
	if len(symbols) > 0 {
		q.Set("symbols", csvSymbols(symbols))
	}

	var resp openExchangeResponse
	if err := p.getJSON(ctx, fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, q.Encode()), &resp); err != nil {
		return nil, err
	}

	observedAt := time.Now().UTC()
	if resp.Timestamp > 0 {
		observedAt = time.Unix(resp.Timestamp, 0).UTC()
	}
	return p.tableFromQuotes(base, resp.Rates, observedAt)
}
