package server

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/labmatch-go/internal/match"
)

// labelHandler is the "handler" label value used to partition metrics by
// the logical endpoint name rather than the raw URL path.
const labelHandler = "handler"

// Metrics holds every Prometheus metric the service exports. It implements
// match.Observer so retrieval and comparison outcomes are recorded whether
// they are driven by HTTP or the CLI.
type Metrics struct {
	// retrievalsTotal counts single-pattern retrievals by pattern and outcome.
	// Outcome is "ok", "timeout" or the match error kind.
	retrievalsTotal *prometheus.CounterVec

	// retrievalDurationSeconds records retrieval latency including explanations.
	retrievalDurationSeconds *prometheus.HistogramVec

	// comparisonsTotal counts comparisons by outcome.
	comparisonsTotal *prometheus.CounterVec

	// comparisonDurationSeconds records the total comparison wall time.
	comparisonDurationSeconds prometheus.Histogram

	// rateLimitedTotal counts requests rejected with 429.
	rateLimitedTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

var _ match.Observer = (*Metrics)(nil)

// NewMetrics registers all metrics against reg. promauto.With(reg) keeps
// tests hermetic when they pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	// Each candidate costs one model call, so retrievals run to minutes.
	slow := []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

	return &Metrics{
		retrievalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labmatch",
			Subsystem: "match",
			Name:      "retrievals_total",
			Help:      "Total number of single-pattern retrievals, partitioned by pattern and outcome.",
		}, []string{"pattern", "outcome"}),

		retrievalDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labmatch",
			Subsystem: "match",
			Name:      "retrieval_duration_seconds",
			Help:      "Wall-clock duration of a retrieval including explanation generation.",
			Buckets:   slow,
		}, []string{"pattern"}),

		comparisonsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labmatch",
			Subsystem: "match",
			Name:      "comparisons_total",
			Help:      "Total number of three-pattern comparisons, partitioned by outcome.",
		}, []string{"outcome"}),

		comparisonDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "labmatch",
			Subsystem: "match",
			Name:      "comparison_duration_seconds",
			Help:      "Wall-clock duration of a comparison across all patterns.",
			Buckets:   slow,
		}),

		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "labmatch",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-IP rate limiter.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labmatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labmatch",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// ObserveRetrieval implements match.Observer.
func (m *Metrics) ObserveRetrieval(p match.Pattern, elapsed time.Duration, err error) {
	m.retrievalsTotal.WithLabelValues(string(p), outcome(err)).Inc()
	m.retrievalDurationSeconds.WithLabelValues(string(p)).Observe(elapsed.Seconds())
}

// ObserveComparison implements match.Observer.
func (m *Metrics) ObserveComparison(elapsed time.Duration, err error) {
	m.comparisonsTotal.WithLabelValues(outcome(err)).Inc()
	m.comparisonDurationSeconds.Observe(elapsed.Seconds())
}

// outcome turns err into a bounded label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if k := match.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
