// Package metrics holds the Prometheus collectors of the API and worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandaudit_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandaudit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandaudit_audits_total",
			Help: "Audits finished, by final status.",
		},
		[]string{"status"},
	)

	AuditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brandaudit_audit_duration_seconds",
			Help:    "Wall time of a full audit run.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	PromptIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandaudit_prompt_issues_total",
			Help: "Per-prompt failures recorded during audits, by kind.",
		},
		[]string{"kind"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandaudit_llm_call_duration_seconds",
			Help:    "Latency of successful provider calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"kind", "provider"},
	)

	LLMCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandaudit_llm_cost_usd_total",
			Help: "Estimated provider spend in USD.",
		},
		[]string{"kind", "provider"},
	)

	RecommendationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brandaudit_recommendation_failures_total",
			Help: "Recommendation synthesis attempts that failed.",
		},
	)
)
