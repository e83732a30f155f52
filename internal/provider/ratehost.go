package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/model"
	"go.uber.org/zap"
)

// RateHost talks to an exchangerate.host-style API: access_key query
// parameter, a success flag and quotes keyed "<BASE><CODE>". No native range
// support; ranges are synthesized one day at a time.
type RateHost struct {
	upstream
}

// NewRateHost creates the exchangerate-host provider variant.
func NewRateHost(cfg config.ProviderConfig, excluded model.ExcludedSet, logger *zap.Logger) *RateHost {
	return &RateHost{
		upstream: newUpstream(cfg.Name, cfg.BaseURL, cfg.APIKey, excluded, logger),
	}
}

type rateHostResponse struct {
	Success   bool                   `json:"success"`
	Source    string                 `json:"source"`
	Timestamp int64                  `json:"timestamp"`
	Quotes    map[string]json.Number `json:"quotes"`
	Error     *rateHostError         `json:"error,omitempty"`
}

type rateHostError struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

func (p *RateHost) Name() string {
	return p.name
}

func (p *RateHost) FetchLatest(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	q := p.query(base, symbols)
	return p.fetchTable(ctx, fmt.Sprintf("%s/live?%s", p.baseURL, q.Encode()), base)
}

func (p *RateHost) FetchHistorical(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	q := p.query(base, symbols)
	q.Set("date", date.Format(DateKey))
	return p.fetchTable(ctx, fmt.Sprintf("%s/historical?%s", p.baseURL, q.Encode()), base)
}

func (p *RateHost) FetchRange(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
	if err := p.checkRequest(base, symbols); err != nil {
		return nil, err
	}
	return synthesizeRange(ctx, p, p.logger, start, end, base, symbols)
}

func (p *RateHost) FetchPair(ctx context.Context, from, to model.Code) (*model.Rate, error) {
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

func (p *RateHost) fetchTable(ctx context.Context, rawURL string, base model.Code) (model.RateTable, error) {
	var resp rateHostResponse
	if err := p.getJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		if resp.Error != nil {
			return nil, model.NewError(model.KindRateUnavailable, "%s: upstream error %d: %s", p.name, resp.Error.Code, resp.Error.Info)
		}
		return nil, model.NewError(model.KindRateUnavailable, "%s: upstream reported failure", p.name)
	}

	observedAt := time.Now().UTC()
	if resp.Timestamp > 0 {
		observedAt = time.Unix(resp.Timestamp, 0).UTC()
	}

	// Quotes arrive keyed "<BASE><CODE>"; strip the base prefix and let the
	// shared parser drop anything that is not a usable currency.
	prefix := base.String()
	quotes := make(map[model.Code]json.Number, len(resp.Quotes))
	for key, num := range resp.Quotes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		quotes[model.Code(strings.TrimPrefix(key, prefix))] = num
	}

	table, err := p.tableFromQuotes(base, quotes, observedAt)
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (p *RateHost) query(base model.Code, symbols []model.Code) url.Values {
	q := url.Values{}
	if p.apiKey != "" {
		q.Set("access_key", p.apiKey)
	}
	q.Set("source", base.String())
	if len(symbols) > 0 {
		q.Set("currencies", csvSymbols(symbols))
	}
	return q
}
