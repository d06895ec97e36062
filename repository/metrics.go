package repository

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const outcomeFailed = "failed"

var (
	// lastSyncTimestamp is a Gauge that captures the timestamp of the last
	// successful repository sync per source
	lastSyncTimestamp *prometheus.GaugeVec
	// syncCount is a Counter vector of repository syncs
	syncCount *prometheus.CounterVec
	// syncLatency is a Histogram vector that keeps track of repository sync durations
	syncLatency *prometheus.HistogramVec
	// fetchedObjects is a Counter vector of objects received from remotes
	fetchedObjects *prometheus.CounterVec
)

// EnableMetrics will enable metrics collection for repository syncs.
// Available metrics are...
//   - git_backup_last_sync_timestamp - (tags: source)
//     A Gauge that captures the Timestamp of the last successful repository sync per source.
//   - git_backup_sync_count - (tags: source,outcome)
//     A Counter for each repository sync, tagged with the outcome (mirrored|updated|up-to-date|failed)
//   - git_backup_sync_latency_seconds - (tags: source)
//     A Histogram that keeps track of the repository sync latency per source.
//   - git_backup_fetched_objects_total - (tags: source)
//     A Counter of objects received from remotes as reported by the transport.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	lastSyncTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_last_sync_timestamp",
		Help:      "Timestamp of the last successful repository sync",
	},
		[]string{
			// name of the source
			"source",
		},
	)

	syncCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_sync_count",
		Help:      "Count of repository sync operations",
	},
		[]string{
			// name of the source
			"source",
			// mirrored, updated, up-to-date or failed
			"outcome",
		},
	)

	syncLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_sync_latency_seconds",
		Help:      "Latency for repository sync",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300, 600},
	},
		[]string{
			// name of the source
			"source",
		},
	)

	fetchedObjects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_fetched_objects_total",
		Help:      "Count of objects received from remotes",
	},
		[]string{
			// name of the source
			"source",
		},
	)

	registerer.MustRegister(
		lastSyncTimestamp,
		syncCount,
		syncLatency,
		fetchedObjects,
	)
}

// recordSync records a repository sync attempt by updating all the
// relevant metrics
func recordSync(source string, res Result, err error) {
	// if metrics not enabled return
	if lastSyncTimestamp == nil || syncCount == nil || fetchedObjects == nil {
		return
	}
	if err != nil {
		syncCount.WithLabelValues(source, outcomeFailed).Inc()
		return
	}
	lastSyncTimestamp.WithLabelValues(source).Set(float64(time.Now().Unix()))
	syncCount.WithLabelValues(source, string(res.Outcome)).Inc()
	fetchedObjects.WithLabelValues(source).Add(float64(res.Objects))
}

func updateSyncLatency(source string, start time.Time) {
	// if metrics not enabled return
	if syncLatency == nil {
		return
	}
	syncLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
