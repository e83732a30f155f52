package cache

import (
	"context"
	"time"

	"github.com/kvachev/fx-rate-service/internal/metrics"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SmartCache stores complete per-base rate tables and answers pair lookups
// by triangulating through the home currency's table. It never fetches:
// population is the conversion service's job.
type SmartCache struct {
	store   TableStore
	policy  *TTLPolicy
	home    model.Code
	logger  *zap.Logger
	metrics *metrics.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewSmartCache creates the cache around a store and TTL policy. home is the
// reference currency whose table serves as the triangulation pivot.
func NewSmartCache(store TableStore, policy *TTLPolicy, home model.Code, logger *zap.Logger, m *metrics.Metrics) *SmartCache {
	return &SmartCache{
		store:   store,
		policy:  policy,
		home:    home,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Home returns the reference currency.
func (c *SmartCache) Home() model.Code {
	return c.home
}

// GetLatestTable returns the cached table for base, or (nil, nil) when
// absent or expired.
func (c *SmartCache) GetLatestTable(ctx context.Context, base model.Code) (model.RateTable, error) {
	entry, err := c.store.Get(ctx, base)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("table")
		}
		return nil, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit("table")
	}
	return entry.Table, nil
}

// SetLatestTable stores the complete table for base, overwriting any
// previous entry. A non-positive ttl means the TTL policy decides.
func (c *SmartCache) SetLatestTable(ctx context.Context, base model.Code, table model.RateTable, ttl time.Duration) error {
	now := c.now()
	if ttl <= 0 {
		ttl = c.policy.TTLAt(now)
	}
	entry := Entry{
		Base:      base,
		Table:     table,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := c.store.Set(ctx, entry); err != nil {
		return err
	}
	c.logger.Debug("Cached rate table",
		zap.String("base", base.String()),
		zap.Int("rates", len(table)),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// GetPairRate answers a pair lookup from cached data only. Identity pairs
// are answered synthetically; anything else triangulates through the home
// currency's table: direct read when from is home, inversion when to is
// home, cross-rate otherwise. Returns (nil, nil) when the needed entries
// are not cached.
func (c *SmartCache) GetPairRate(ctx context.Context, from, to model.Code) (*model.Rate, error) {
	if from == to {
		rate := model.IdentityRate(from)
		return &rate, nil
	}

	entry, err := c.store.Get(ctx, c.home)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("pair")
		}
		return nil, nil
	}

	rate := c.triangulate(entry.Table, from, to)
	if rate == nil {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("pair")
		}
		return nil, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit("pair")
	}
	return rate, nil
}

func (c *SmartCache) triangulate(table model.RateTable, from, to model.Code) *model.Rate {
	one := decimal.NewFromInt(1)

	if from == c.home {
		direct, ok := table[to]
		if !ok {
			return nil
		}
		return &direct
	}

	if to == c.home {
		source, ok := table[from]
		if !ok || source.Value.IsZero() {
			return nil
		}
		return &model.Rate{
			From:       from,
			To:         to,
			Value:      one.Div(source.Value),
			ObservedAt: source.ObservedAt,
			Source:     source.Source,
		}
	}

	fromRate, okFrom := table[from]
	toRate, okTo := table[to]
	if !okFrom || !okTo || fromRate.Value.IsZero() {
		return nil
	}
	observedAt := fromRate.ObservedAt
	if toRate.ObservedAt.Before(observedAt) {
		observedAt = toRate.ObservedAt
	}
	return &model.Rate{
		From:       from,
		To:         to,
		Value:      toRate.Value.Div(fromRate.Value),
		ObservedAt: observedAt,
		Source:     toRate.Source,
	}
}

// Health reports store reachability.
func (c *SmartCache) Health(ctx context.Context) error {
	return c.store.Health(ctx)
}
