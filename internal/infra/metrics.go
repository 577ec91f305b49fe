package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lock-free counters shared by the scheduler, the quote
// service and the chat handler. The HTTP server exports them to Prometheus.
type Metrics struct {
	// Scheduler
	ticks            atomic.Uint64
	ticksSkipped     atomic.Uint64
	notificationsDue atomic.Uint64
	notificationsOK  atomic.Uint64
	dispatchFailures atomic.Uint64

	// Quotes
	quoteFetches  atomic.Uint64
	quoteFailures atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	throttleWaits atomic.Uint64

	// Conversation / storage
	inboundEvents atomic.Uint64
	storeErrors   atomic.Uint64

	// Tick latency tracking
	tickSumNs atomic.Int64
	lastTick  atomic.Int64 // unix nanos
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records a finished scheduler tick with its duration.
func (m *Metrics) RecordTick(d time.Duration, finishedAt time.Time) {
	m.ticks.Add(1)
	m.tickSumNs.Add(int64(d))
	m.lastTick.Store(finishedAt.UnixNano())
}

// RecordTickSkipped records a tick dropped because the previous one was still running.
func (m *Metrics) RecordTickSkipped() { m.ticksSkipped.Add(1) }

// RecordDue records subscribers found due in a tick.
func (m *Metrics) RecordDue(n int) { m.notificationsDue.Add(uint64(n)) }

// RecordSent records a delivered notification.
func (m *Metrics) RecordSent() { m.notificationsOK.Add(1) }

// RecordDispatchFailure records a notification that could not be delivered.
func (m *Metrics) RecordDispatchFailure() { m.dispatchFailures.Add(1) }

// RecordQuoteFetch records an upstream call and whether it failed.
func (m *Metrics) RecordQuoteFetch(failed bool) {
	m.quoteFetches.Add(1)
	if failed {
		m.quoteFailures.Add(1)
	}
}

// RecordCache records a cache lookup result.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

// RecordThrottleWait records one backoff wait after a throttled response.
func (m *Metrics) RecordThrottleWait() { m.throttleWaits.Add(1) }

// RecordInbound records an inbound chat event.
func (m *Metrics) RecordInbound() { m.inboundEvents.Add(1) }

// RecordStoreError records a failed persistence operation.
func (m *Metrics) RecordStoreError() { m.storeErrors.Add(1) }

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Ticks            uint64
	TicksSkipped     uint64
	NotificationsDue uint64
	NotificationsOK  uint64
	DispatchFailures uint64
	QuoteFetches     uint64
	QuoteFailures    uint64
	CacheHits        uint64
	CacheMisses      uint64
	ThrottleWaits    uint64
	InboundEvents    uint64
	StoreErrors      uint64
	AvgTickNs        int64
	LastTick         time.Time
	Timestamp        time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avg int64
	if n := m.ticks.Load(); n > 0 {
		avg = m.tickSumNs.Load() / int64(n)
	}

	var last time.Time
	if ns := m.lastTick.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}

	return MetricsSnapshot{
		Ticks:            m.ticks.Load(),
		TicksSkipped:     m.ticksSkipped.Load(),
		NotificationsDue: m.notificationsDue.Load(),
		NotificationsOK:  m.notificationsOK.Load(),
		DispatchFailures: m.dispatchFailures.Load(),
		QuoteFetches:     m.quoteFetches.Load(),
		QuoteFailures:    m.quoteFailures.Load(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		ThrottleWaits:    m.throttleWaits.Load(),
		InboundEvents:    m.inboundEvents.Load(),
		StoreErrors:      m.storeErrors.Load(),
		AvgTickNs:        avg,
		LastTick:         last,
		Timestamp:        time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.ticks, &m.ticksSkipped, &m.notificationsDue, &m.notificationsOK, &m.dispatchFailures,
		&m.quoteFetches, &m.quoteFailures, &m.cacheHits, &m.cacheMisses, &m.throttleWaits,
		&m.inboundEvents, &m.storeErrors,
	} {
		c.Store(0)
	}
	m.tickSumNs.Store(0)
	m.lastTick.Store(0)
}
