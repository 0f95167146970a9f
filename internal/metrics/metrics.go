package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "intervue"

// Metrics groups the collectors reported by grading, the job queue and panel mode.
type Metrics struct {
	GradingOutcomes  *prometheus.CounterVec
	OracleFallbacks  *prometheus.CounterVec
	JobRetries       *prometheus.CounterVec
	JobsDeadLettered *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	PanelTransitions *prometheus.CounterVec
}

// New registers every collector on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		GradingOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "outcomes_total",
			Help:      "Graded answers by grading kind and outcome.",
		}, []string{"kind", "outcome"}),
		OracleFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fallbacks_total",
			Help:      "Times a deterministic fallback replaced an LLM response.",
		}, []string{"operation"}),
		JobRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "job_retries_total",
			Help:      "Jobs rescheduled after a failed attempt.",
		}, []string{"queue"}),
		JobsDeadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_dead_lettered_total",
			Help:      "Jobs that exhausted their attempts.",
		}, []string{"queue"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Time spent running one job attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "status"}),
		PanelTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "transitions_total",
			Help:      "Panel session transitions by resulting phase.",
		}, []string{"phase"}),
	}
}

// NewNop returns metrics bound to a private registry, for callers that do not export them.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
