package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics the supervisor records. Pass nil to
// the supervisor to disable recording.
type Metrics struct {
	Operations      *prometheus.CounterVec // op=ensure|restart, outcome=reused|started|failed
	Restarts        *prometheus.CounterVec // reason=stale|stuck|manual
	StartupDuration prometheus.Histogram
	VersionChecks   *prometheus.CounterVec // result=current|stale|pre_version|probe_error
}

// NewMetrics creates and registers all supervisor metrics with the registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moltworker",
				Name:      "operations_total",
				Help:      "Supervisor operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		Restarts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moltworker",
				Name:      "gateway_restarts_total",
				Help:      "Gateway kill-and-restart cycles by reason",
			},
			[]string{"reason"},
		),
		StartupDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "moltworker",
				Name:      "gateway_startup_seconds",
				Help:      "Time from process start until the listening port accepted a connection",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
			},
		),
		VersionChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moltworker",
				Name:      "version_checks_total",
				Help:      "Configuration fingerprint checks by result",
			},
			[]string{"result"},
		),
	}
}
