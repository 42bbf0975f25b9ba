package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_completed_total",
			Help: "Total number of pipeline stage executions that completed",
		},
		[]string{"stage"},
	)

	StageFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failed_total",
			Help: "Total number of pipeline stage executions that failed",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of pipeline stage executions in seconds",
		},
		[]string{"stage"},
	)

	EndpointCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_endpoint_calls_total",
			Help: "Total number of data-API calls by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Total number of response-cache lookups by result",
		},
		[]string{"result"},
	)

	FallbackRelaxations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_relaxations_total",
			Help: "Total number of fallback relaxation steps applied",
		},
		[]string{"step"},
	)
)
