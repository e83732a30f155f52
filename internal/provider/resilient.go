package provider

import (
	"context"
	"errors"
	"time"

	"github.com/kvachev/fx-rate-service/internal/metrics"
	"github.com/kvachev/fx-rate-service/internal/model"
	"go.uber.org/zap"
)

// ResilientProvider decorates a RateProvider with a bounded retry policy and
// a per-provider circuit breaker. Retry runs innermost; the breaker records
// one outcome per call, after retries are exhausted, so a call that succeeds
// on its last attempt counts as a success.
type ResilientProvider struct {
	inner       RateProvider
	breaker     *Breaker
	maxAttempts int
	backoffUnit time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewResilientProvider wraps inner with retry and circuit breaking.
// maxAttempts is the total attempt count, including the first call.
func NewResilientProvider(inner RateProvider, breaker *Breaker, maxAttempts int, logger *zap.Logger, m *metrics.Metrics) *ResilientProvider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ResilientProvider{
		inner:       inner,
		breaker:     breaker,
		maxAttempts: maxAttempts,
		backoffUnit: time.Second,
		logger:      logger,
		metrics:     m,
	}
}

func (r *ResilientProvider) Name() string {
	return r.inner.Name()
}

// Breaker exposes the provider's circuit breaker for health reporting.
func (r *ResilientProvider) Breaker() *Breaker {
	return r.breaker
}

func (r *ResilientProvider) FetchLatest(ctx context.Context, base model.Code, symbols []model.Code) (model.RateTable, error) {
	var table model.RateTable
	err := r.execute(ctx, "latest", func() error {
		var err error
		table, err = r.inner.FetchLatest(ctx, base, symbols)
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (r *ResilientProvider) FetchHistorical(ctx context.Context, date time.Time, base model.Code, symbols []model.Code) (model.RateTable, error) {
	var table model.RateTable
	err := r.execute(ctx, "historical", func() error {
		var err error
		table, err = r.inner.FetchHistorical(ctx, date, base, symbols)
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (r *ResilientProvider) FetchRange(ctx context.Context, start, end time.Time, base model.Code, symbols []model.Code) (map[string]model.RateTable, error) {
	var result map[string]model.RateTable
	err := r.execute(ctx, "range", func() error {
		var err error
		result, err = r.inner.FetchRange(ctx, start, end, base, symbols)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ResilientProvider) FetchPair(ctx context.Context, from, to model.Code) (*model.Rate, error) {
	var rate *model.Rate
	err := r.execute(ctx, "pair", func() error {
		var err error
		rate, err = r.inner.FetchPair(ctx, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rate, nil
}

func (r *ResilientProvider) execute(ctx context.Context, op string, fn func() error) error {
	if err := r.breaker.Allow(); err != nil {
		r.logger.Warn("Circuit open, failing fast",
			zap.String("provider", r.Name()),
			zap.String("op", op),
		)
		if r.metrics != nil {
			r.metrics.RecordProviderError(r.Name(), "circuit_open")
		}
		return err
	}

	start := time.Now()
	err := r.withRetries(ctx, op, fn)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		r.breaker.RecordSuccess()
		if r.metrics != nil {
			r.metrics.RecordProviderRequest(r.Name(), "success", elapsed)
		}
	case model.IsTransient(err):
		r.breaker.RecordFailure()
		if r.metrics != nil {
			r.metrics.RecordProviderRequest(r.Name(), "error", elapsed)
			r.metrics.RecordProviderError(r.Name(), "transient")
		}
		r.logger.Error("Provider call failed after retries",
			zap.String("provider", r.Name()),
			zap.String("op", op),
			zap.Error(err),
		)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Caller gave up; not evidence about upstream health.
		r.breaker.ReleaseProbe()
	default:
		// Permanent outcome (validation, 4xx, undecodable body). The
		// upstream answered, so it neither counts toward the trip
		// threshold nor resets it.
		r.breaker.ReleaseProbe()
		if r.metrics != nil {
			r.metrics.RecordProviderRequest(r.Name(), "error", elapsed)
			r.metrics.RecordProviderError(r.Name(), "permanent")
		}
	}
	return err
}

// withRetries runs fn up to maxAttempts times, backing off 2^attempt units
// between transient failures. Non-transient failures return immediately;
// cancellation aborts the loop without another attempt.
func (r *ResilientProvider) withRetries(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !model.IsTransient(err) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := time.Duration(1<<uint(attempt)) * r.backoffUnit
		r.logger.Warn("Transient provider failure, retrying",
			zap.String("provider", r.Name()),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordRetry(r.Name())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
