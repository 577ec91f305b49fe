package service

import (
	"context"
	"log/slog"
	"time"

	"quote_notifier/internal/domain"
	"quote_notifier/internal/infra"

	"golang.org/x/sync/singleflight"
)

// QuoteService serves quote sets from the cache and falls back to the
// upstream provider through the retry policy.
type QuoteService struct {
	provider domain.QuoteProvider
	cache    *QuoteCache
	retry    infra.RetryPolicy
	metrics  *infra.Metrics

	// coalesce concurrent misses for the same key
	sf singleflight.Group
}

var _ domain.QuoteSource = (*QuoteService)(nil)

// NewQuoteService wires the provider, cache and retry policy together.
func NewQuoteService(provider domain.QuoteProvider, cache *QuoteCache, retry infra.RetryPolicy, metrics *infra.Metrics) *QuoteService {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	s := &QuoteService{
		provider: provider,
		cache:    cache,
		retry:    retry,
		metrics:  metrics,
	}

	onRetry := retry.OnRetry
	s.retry.OnRetry = func(n int, delay time.Duration, err error) {
		s.metrics.RecordThrottleWait()
		if onRetry != nil {
			onRetry(n, delay, err)
		}
	}
	return s
}

// Quotes returns the quotes for pairs. A NoData result is returned as
// domain.ErrNoData and is not cached.
func (s *QuoteService) Quotes(ctx context.Context, pairs []domain.CurrencyPair) (domain.QuoteSet, error) {
	if len(pairs) == 0 {
		return nil, domain.NewQuoteError(domain.QuoteNoData, nil)
	}

	key := domain.PairSetKey(pairs)
	if quotes, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(true)
		return quotes, nil
	}
	s.metrics.RecordCache(false)

	v, err, shared := s.sf.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if quotes, ok := s.cache.Get(key); ok {
			return quotes, nil
		}
		return s.fetch(ctx, key, pairs)
	})
	if shared {
		slog.Debug("Shared upstream fetch", slog.String("key", key))
	}
	if err != nil {
		return nil, err
	}
	return v.(domain.QuoteSet), nil
}

func (s *QuoteService) fetch(ctx context.Context, key string, pairs []domain.CurrencyPair) (domain.QuoteSet, error) {
	var quotes domain.QuoteSet
	start := time.Now()
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var ferr error
		quotes, ferr = s.provider.FetchQuotes(ctx, pairs)
		return ferr
	})
	s.metrics.RecordQuoteFetch(err != nil)

	if err != nil {
		slog.Warn("⚠️ Quote fetch failed",
			slog.String("key", key),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, domain.NewQuoteError(domain.QuoteNoData, nil)
	}

	s.cache.Put(key, quotes)
	return quotes, nil
}
