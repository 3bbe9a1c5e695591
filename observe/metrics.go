// Package observe exposes Prometheus metrics for the dispatch boundary.
// All model calls funnel through the dispatcher, so these counters give
// a complete picture of backend traffic regardless of which chunking
// path produced the calls.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal counts model calls by backend.
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsift_dispatches_total",
		Help: "Model calls dispatched, by backend.",
	}, []string{"backend"})

	// DispatchFailures counts failed model calls by backend and error
	// kind.
	DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsift_dispatch_failures_total",
		Help: "Failed model calls, by backend and error kind.",
	}, []string{"backend", "kind"})

	// PromptTokens accumulates prompt tokens sent, by backend, as
	// measured by the active counter.
	PromptTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsift_prompt_tokens_total",
		Help: "Prompt tokens sent to backends.",
	}, []string{"backend"})

	// ResponseTokens accumulates response tokens received, by backend.
	ResponseTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsift_response_tokens_total",
		Help: "Response tokens received from backends.",
	}, []string{"backend"})

	// DispatchSeconds observes model call latency by backend.
	DispatchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docsift_dispatch_duration_seconds",
		Help:    "Model call latency, by backend.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"backend"})
)
