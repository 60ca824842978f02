package prometheus

import (
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// lockMetrics is the Prometheus implementation of metrics.LockMetrics.
type lockMetrics struct {
	acquisitions *prometheus.CounterVec
	releases     prometheus.Counter
	refreshes    prometheus.Counter
	activeLocks  prometheus.Gauge
	conditions   *prometheus.CounterVec
}

// NewLockMetrics creates a Prometheus-backed LockMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewLockMetrics() metrics.LockMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopLockMetrics()
	}

	reg := metrics.GetRegistry()

	return &lockMetrics{
		acquisitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_lock_acquisitions_total",
				Help: "Lock acquisition attempts by scope and outcome",
			},
			[]string{"scope", "outcome"},
		),
		releases: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_lock_releases_total",
				Help: "Total number of released locks",
			},
		),
		refreshes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_lock_refreshes_total",
				Help: "Total number of refreshed locks",
			},
		),
		activeLocks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittodav_lock_active",
				Help: "Current number of non-expired locks",
			},
		),
		conditions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_condition_evaluations_total",
				Help: "If header evaluations by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *lockMetrics) RecordAcquire(scope, outcome string) {
	m.acquisitions.WithLabelValues(scope, outcome).Inc()
}

func (m *lockMetrics) RecordRelease() {
	m.releases.Inc()
}

func (m *lockMetrics) RecordRefresh() {
	m.refreshes.Inc()
}

func (m *lockMetrics) SetActiveLocks(count int) {
	m.activeLocks.Set(float64(count))
}

func (m *lockMetrics) RecordConditionEvaluation(outcome string) {
	m.conditions.WithLabelValues(outcome).Inc()
}
