// Package metrics exposes the core's operational counters and gauges to
// Prometheus, wiring the dependency the original scanner declared but never
// exercised.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the core publishes, grouped so call sites
// don't have to hold a dozen separate package-level variables.
type Registry struct {
	EventsIngested   *prometheus.CounterVec
	AlertsSent       *prometheus.CounterVec
	Escalations      *prometheus.CounterVec
	ActiveTrackers   prometheus.Gauge
	VaultBackupCount prometheus.Gauge
	VaultBytesUsed   prometheus.Gauge
	ResponseDuration prometheus.Histogram
}

// NewRegistry builds and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransomguard",
			Name:      "events_ingested_total",
			Help:      "Filesystem events ingested, labeled by event type.",
		}, []string{"type"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransomguard",
			Name:      "alerts_sent_total",
			Help:      "Alerts emitted, labeled by severity.",
		}, []string{"level"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransomguard",
			Name:      "escalations_total",
			Help:      "Response cycles, labeled by escalation level reached.",
		}, []string{"level"}),
		ActiveTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransomguard",
			Name:      "active_trackers",
			Help:      "Number of PIDs currently tracked by the pattern detector.",
		}),
		VaultBackupCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransomguard",
			Name:      "vault_backup_count",
			Help:      "Number of snapshot records currently retained in the vault.",
		}),
		VaultBytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransomguard",
			Name:      "vault_bytes_used",
			Help:      "Approximate bytes of backup payload currently retained in the vault.",
		}),
		ResponseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ransomguard",
			Name:      "response_duration_seconds",
			Help:      "Wall-clock time to run one response cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(r.EventsIngested, r.AlertsSent, r.Escalations, r.ActiveTrackers, r.VaultBackupCount, r.VaultBytesUsed, r.ResponseDuration)
	return r
}
