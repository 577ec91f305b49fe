package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quote_notifier/internal/domain"
	"quote_notifier/internal/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns errs in order, then a fixed quote set.
type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	set   domain.QuoteSet
	calls atomic.Int32
}

func (p *scriptedProvider) FetchQuotes(_ context.Context, _ []domain.CurrencyPair) (domain.QuoteSet, error) {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return p.set, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func usdBRL() domain.QuoteSet {
	return domain.QuoteSet{
		"USDBRL": {Code: "USD", CodeIn: "BRL", Bid: decimal.RequireFromString("5.41"), Ask: decimal.RequireFromString("5.42")},
	}
}

func newTestService(p domain.QuoteProvider, clock *fakeClock, sleeps *[]time.Duration) *QuoteService {
	policy := infra.DefaultRetryPolicy()
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return NewQuoteService(p, NewQuoteCache(DefaultCacheTTL, clock.Now), policy, &infra.Metrics{})
}

func TestQuoteCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)}
	c := NewQuoteCache(5*time.Minute, clock.Now)

	_, ok := c.Get("USD-BRL")
	require.False(t, ok)

	c.Put("USD-BRL", usdBRL())
	got, ok := c.Get("USD-BRL")
	require.True(t, ok)
	require.Contains(t, got, "USDBRL")

	clock.Advance(4*time.Minute + 59*time.Second)
	_, ok = c.Get("USD-BRL")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("USD-BRL")
	require.False(t, ok, "entry exactly TTL old is stale")
	require.Equal(t, 1, c.Len())
}

func TestQuoteService_CachesWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)}
	p := &scriptedProvider{set: usdBRL()}
	svc := newTestService(p, clock, nil)
	pairs := []domain.CurrencyPair{domain.NewCurrencyPair("USD", "BRL")}
	ctx := context.Background()

	_, err := svc.Quotes(ctx, pairs)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.Quotes(ctx, pairs)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.calls.Load())

	clock.Advance(5 * time.Minute)
	_, err = svc.Quotes(ctx, pairs)
	require.NoError(t, err)
	require.EqualValues(t, 2, p.calls.Load())

	snap := svc.metrics.Snapshot()
	require.EqualValues(t, 1, snap.CacheHits)
	require.EqualValues(t, 2, snap.CacheMisses)
}

func TestQuoteService_KeyKeepsRequestOrder(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	p := &scriptedProvider{set: usdBRL()}
	svc := newTestService(p, clock, nil)
	ctx := context.Background()

	a := []domain.CurrencyPair{domain.NewCurrencyPair("USD", "BRL"), domain.NewCurrencyPair("EUR", "BRL")}
	b := []domain.CurrencyPair{domain.NewCurrencyPair("EUR", "BRL"), domain.NewCurrencyPair("USD", "BRL")}

	_, err := svc.Quotes(ctx, a)
	require.NoError(t, err)
	_, err = svc.Quotes(ctx, b)
	require.NoError(t, err)
	require.EqualValues(t, 2, p.calls.Load())
}

func TestQuoteService_NoDataIsNotCached(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	p := &scriptedProvider{set: domain.QuoteSet{}}
	svc := newTestService(p, clock, nil)
	pairs := []domain.CurrencyPair{domain.NewCurrencyPair("XXX", "YYY")}

	for i := 0; i < 2; i++ {
		_, err := svc.Quotes(context.Background(), pairs)
		require.ErrorIs(t, err, domain.ErrNoData)
	}
	require.EqualValues(t, 2, p.calls.Load())
	require.Equal(t, 0, svc.cache.Len())
}

func TestQuoteService_RetriesThrottling(t *testing.T) {
	throttled := func() error { return domain.NewQuoteError(domain.QuoteThrottled, errors.New("status 429")) }
	pairs := []domain.CurrencyPair{domain.NewCurrencyPair("USD", "BRL")}

	t.Run("three throttles then success", func(t *testing.T) {
		var sleeps []time.Duration
		p := &scriptedProvider{set: usdBRL(), errs: []error{throttled(), throttled(), throttled()}}
		svc := newTestService(p, &fakeClock{now: time.Now()}, &sleeps)

		got, err := svc.Quotes(context.Background(), pairs)
		require.NoError(t, err)
		require.Contains(t, got, "USDBRL")
		require.EqualValues(t, 4, p.calls.Load())
		require.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, sleeps)
		require.EqualValues(t, 3, svc.metrics.Snapshot().ThrottleWaits)
	})

	t.Run("four throttles exhaust the policy", func(t *testing.T) {
		p := &scriptedProvider{set: usdBRL(), errs: []error{throttled(), throttled(), throttled(), throttled()}}
		svc := newTestService(p, &fakeClock{now: time.Now()}, nil)

		_, err := svc.Quotes(context.Background(), pairs)
		require.ErrorIs(t, err, domain.ErrThrottled)
		require.EqualValues(t, 4, p.calls.Load())
		require.Equal(t, 0, svc.cache.Len())
	})

	t.Run("upstream error is not retried", func(t *testing.T) {
		p := &scriptedProvider{errs: []error{domain.NewQuoteError(domain.QuoteUpstream, errors.New("status 500"))}}
		svc := newTestService(p, &fakeClock{now: time.Now()}, nil)

		_, err := svc.Quotes(context.Background(), pairs)
		require.ErrorIs(t, err, domain.ErrUpstream)
		require.EqualValues(t, 1, p.calls.Load())
	})
}

func TestQuoteService_EmptyPairs(t *testing.T) {
	p := &scriptedProvider{set: usdBRL()}
	svc := newTestService(p, &fakeClock{now: time.Now()}, nil)

	_, err := svc.Quotes(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrNoData)
	require.Zero(t, p.calls.Load())
}

func TestQuoteService_ConcurrentSameKey(t *testing.T) {
	p := &scriptedProvider{set: usdBRL()}
	svc := newTestService(p, &fakeClock{now: time.Now()}, nil)
	pairs := []domain.CurrencyPair{domain.NewCurrencyPair("USD", "BRL")}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Quotes(context.Background(), pairs); err != nil {
				t.Errorf("Quotes failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Late callers either join the flight or hit the refilled cache.
	require.EqualValues(t, 1, p.calls.Load())
	_, ok := svc.cache.Get(domain.PairSetKey(pairs))
	require.True(t, ok)
}
