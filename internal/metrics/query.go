package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline Prometheus metrics.
var (
	CompileOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querydex",
			Name:      "compile_outcomes_total",
			Help:      "Query compilations by outcome",
		},
		[]string{"outcome"}, // "deterministic" / "escalated" / "degraded"
	)

	CompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "querydex",
			Name:      "compile_duration_seconds",
			Help:      "Query compilation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
	)

	AnswerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querydex",
			Name:      "answer_cache_total",
			Help:      "Answer cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RegistryRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "querydex",
			Name:      "registry_refreshes_total",
			Help:      "Field registry cache refreshes",
		},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "querydex",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"}, // "search" / "aggregate"
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querydex",
			Name:      "llm_requests_total",
			Help:      "LLM compiler requests by status",
		},
		[]string{"status"}, // "ok" / "error" / "rate_limited"
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers the query pipeline metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(CompileOutcomesTotal)
	prometheus.MustRegister(CompileDuration)
	prometheus.MustRegister(AnswerCacheTotal)
	prometheus.MustRegister(RegistryRefreshesTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	queryMetricsRegistered = true
}
