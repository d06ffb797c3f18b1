package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// coordinatorMetrics mirrors stats/xaction_stats.go's per-xaction stats
// model: per-stage counters and latencies, kept on the Manager rather than
// registered globally so tests can construct independent Managers without
// fighting over the default registry.
type coordinatorMetrics struct {
	requestsTotal *prometheus.CounterVec
	stageSeconds  *prometheus.HistogramVec
}

func newMetrics() *coordinatorMetrics {
	return &coordinatorMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xlocset_coordinator_requests_total",
			Help: "Count of XLocSet reconfiguration requests processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "xlocset_coordinator_stage_duration_seconds",
			Help: "Latency of each reconfiguration protocol stage.",
		}, []string{"stage"}),
	}
}

// Register adds the coordinator's collectors to reg. Call once per process.
func (m *coordinatorMetrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.requestsTotal); err != nil {
		return err
	}
	return reg.Register(m.stageSeconds)
}

func (m *coordinatorMetrics) observeStage(stage string, d time.Duration) {
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}
