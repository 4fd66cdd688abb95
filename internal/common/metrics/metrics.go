// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of styling requests by terminal status",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of pipeline stage processing in seconds",
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of stage failures by error code",
		},
		[]string{"stage", "error_code"},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_calls_total",
			Help: "Total number of model service calls by capability and outcome",
		},
		[]string{"capability", "outcome"},
	)

	AngleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "angle_failures_total",
			Help: "Total number of failed angle renditions",
		},
		[]string{"angle"},
	)

	PipelineActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_active",
			Help: "Number of styling requests currently in flight",
		},
		[]string{"stage"},
	)
)
