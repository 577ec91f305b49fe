package httpserver

import (
	"quote_notifier/internal/infra"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quote_notifier"

// RegisterMetrics exposes the in-process counters through reg.
// Values are read from m on every scrape.
func RegisterMetrics(reg prometheus.Registerer, m *infra.Metrics) error {
	counter := func(subsystem, name, help string, read func(infra.MetricsSnapshot) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(m.Snapshot())) })
	}

	collectors := []prometheus.Collector{
		counter("scheduler", "ticks_total", "Finished scheduler ticks.",
			func(s infra.MetricsSnapshot) uint64 { return s.Ticks }),
		counter("scheduler", "ticks_skipped_total", "Ticks skipped because the previous one was still running.",
			func(s infra.MetricsSnapshot) uint64 { return s.TicksSkipped }),
		counter("scheduler", "notifications_due_total", "Subscribers found due.",
			func(s infra.MetricsSnapshot) uint64 { return s.NotificationsDue }),
		counter("scheduler", "notifications_sent_total", "Notifications delivered.",
			func(s infra.MetricsSnapshot) uint64 { return s.NotificationsOK }),
		counter("scheduler", "dispatch_failures_total", "Notifications the chat channel rejected.",
			func(s infra.MetricsSnapshot) uint64 { return s.DispatchFailures }),
		counter("quotes", "fetches_total", "Upstream quote fetches, one per retry sequence.",
			func(s infra.MetricsSnapshot) uint64 { return s.QuoteFetches }),
		counter("quotes", "fetch_failures_total", "Upstream quote fetches that failed.",
			func(s infra.MetricsSnapshot) uint64 { return s.QuoteFailures }),
		counter("quotes", "cache_hits_total", "Quote cache hits.",
			func(s infra.MetricsSnapshot) uint64 { return s.CacheHits }),
		counter("quotes", "cache_misses_total", "Quote cache misses.",
			func(s infra.MetricsSnapshot) uint64 { return s.CacheMisses }),
		counter("quotes", "throttle_retries_total", "Retries after upstream throttling.",
			func(s infra.MetricsSnapshot) uint64 { return s.ThrottleWaits }),
		counter("bot", "inbound_events_total", "Inbound chat events handled.",
			func(s infra.MetricsSnapshot) uint64 { return s.InboundEvents }),
		counter("store", "errors_total", "Subscriber store failures.",
			func(s infra.MetricsSnapshot) uint64 { return s.StoreErrors }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_avg_seconds",
			Help:      "Average scheduler tick duration.",
		}, func() float64 { return float64(m.Snapshot().AvgTickNs) / 1e9 }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time the last tick finished.",
		}, func() float64 {
			last := m.Snapshot().LastTick
			if last.IsZero() {
				return 0
			}
			return float64(last.UnixNano()) / 1e9
		}),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
