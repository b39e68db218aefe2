package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================================
// METRICS
// ============================================================================

// Metrics holds the engine's Prometheus instrumentation
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
}

// NewMetrics creates engine metrics registered with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepchain",
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal status",
		}, []string{"pipeline", "status"}),

		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepchain",
			Name:      "steps_total",
			Help:      "Step executions by outcome",
		}, []string{"pipeline", "step", "status"}),

		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepchain",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"pipeline", "step"}),
	}
}

func (m *Metrics) observeRun(pipeline string, status RunStatus) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(pipeline, string(status)).Inc()
}

func (m *Metrics) observeStep(pipeline, step string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.stepsTotal.WithLabelValues(pipeline, step, status).Inc()
	m.stepDuration.WithLabelValues(pipeline, step).Observe(elapsed.Seconds())
}
