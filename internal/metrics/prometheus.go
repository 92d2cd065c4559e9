package metrics

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets spans 100ms to 120s, the backend request timeout.
var LatencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts inbound HTTP requests by route and status code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollamabridge_requests_total",
			Help: "Inbound requests",
		},
		[]string{"route", "status"},
	)

	// RequestDuration records inbound request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ollamabridge_request_duration_seconds",
			Help:    "Inbound request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"route"},
	)

	// BackendRequestsTotal counts chat-completion calls. Status "0" is a transport failure.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollamabridge_backend_requests_total",
			Help: "Backend chat-completion calls",
		},
		[]string{"status"},
	)

	// BackendLatency records backend call latency in seconds.
	BackendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ollamabridge_backend_latency_seconds",
			Help:    "Backend latency",
			Buckets: LatencyBuckets,
		},
	)

	// EvalTokensTotal counts reported eval_count tokens per client alias.
	EvalTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollamabridge_eval_tokens_total",
			Help: "Reported eval tokens",
		},
		[]string{"model"},
	)

	// InflatedResponsesTotal counts responses whose eval_count was raised to meet the throughput floor.
	InflatedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollamabridge_inflated_responses_total",
			Help: "Responses raised to the throughput floor",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		BackendRequestsTotal,
		BackendLatency,
		EvalTokensTotal,
		InflatedResponsesTotal,
	)
}
