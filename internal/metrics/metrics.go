package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	HTTPRateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_rate_limited_total",
		Help:      "Total requests rejected by the rate limiter, by route.",
	}, []string{"route"})

	HTTPPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_panics_total",
		Help:      "Total handler panics recovered, by route.",
	}, []string{"route"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "upstream_requests_total",
		Help:      "Total requests to the upstream catalog API by operation and result status.",
	}, []string{"operation", "status"})

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream catalog API request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"operation"})

	FanOutSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "fanout_urls",
		Help:      "Number of related-entity URLs requested per fan-out.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	FanOutFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "fanout_failures_total",
		Help:      "Total related-entity fetches dropped from a fan-out.",
	})

	QueryLogWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "query_log_writes_total",
		Help:      "Total query log writes by result status.",
	}, []string{"status"})

	StatsRecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "stats_recompute_total",
		Help:      "Total stats snapshot recomputations by trigger and result status.",
	}, []string{"trigger", "status"})

	StatsRecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "stats_recompute_duration_seconds",
		Help:      "Stats snapshot recomputation duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRateLimitedTotal,
		HTTPPanicsTotal,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		FanOutSize,
		FanOutFailuresTotal,
		QueryLogWritesTotal,
		StatsRecomputeTotal,
		StatsRecomputeDuration,
	)
}
