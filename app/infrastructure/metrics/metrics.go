// Package metrics exposes the analytics cache's Prometheus metrics on a
// private registry served at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "analytics_cache"

var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// QueriesTotal counts pipeline executions by where the rows came from.
	QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Analytics queries by source (cache, database) and staleness",
		},
		[]string{"source", "staleness"},
	)

	FallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Queries served from the database, by reason",
		},
		[]string{"reason"},
	)

	FailClosedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fail_closed_total",
			Help:      "Queries that returned no rows because the caller's scope resolved to nothing",
		},
	)

	WarmsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warms_total",
			Help:      "Warm attempts by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	WarmDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warm_duration_seconds",
			Help:      "Duration of successful warms",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"kind"},
	)

	OversizedEntriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversized_entries_total",
			Help:      "Entries rejected at write time for exceeding the size ceiling",
		},
	)

	LockContentionTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Lock acquisitions refused because another owner held the lock",
		},
		[]string{"lock"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func RecordQuery(source, staleness string) {
	QueriesTotal.WithLabelValues(source, staleness).Inc()
}

func RecordFallback(reason string) {
	FallbacksTotal.WithLabelValues(reason).Inc()
}

func RecordFailClosed() {
	FailClosedTotal.Inc()
}

func RecordWarm(trigger, outcome, kind string, took time.Duration, rejected int) {
	WarmsTotal.WithLabelValues(trigger, outcome).Inc()
	if outcome == "success" {
		WarmDuration.WithLabelValues(kind).Observe(took.Seconds())
	}
	if rejected > 0 {
		OversizedEntriesTotal.Add(float64(rejected))
	}
}

func RecordLockContention(lock string) {
	LockContentionTotal.WithLabelValues(lock).Inc()
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
