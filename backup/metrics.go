package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runTimestamp    prometheus.Gauge
	runDuration     prometheus.Gauge
	runRepositories *prometheus.GaugeVec
)

// EnableMetrics will enable metrics for backup runs.
// Available metrics are...
//   - git_backup_run_timestamp
//     A Gauge that captures the Timestamp of the end of the last run.
//   - git_backup_run_duration_seconds
//     A Gauge with the duration of the last run.
//   - git_backup_run_repositories - (tags: source,state)
//     A Gauge with counts of the last run per source
//     (discovered|mirrored|updated|up-to-date|failed|skipped).
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	runTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_run_timestamp",
		Help:      "Timestamp of the end of the last backup run",
	})

	runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_run_duration_seconds",
		Help:      "Duration of the last backup run",
	})

	runRepositories = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_run_repositories",
		Help:      "Repository counts of the last backup run",
	},
		[]string{"source", "state"},
	)

	registerer.MustRegister(runTimestamp, runDuration, runRepositories)
}

func recordRun(report Report, start time.Time) {
	if runTimestamp == nil {
		return
	}

	runTimestamp.SetToCurrentTime()
	runDuration.Set(time.Since(start).Seconds())

	for name, r := range report.Sources {
		runRepositories.WithLabelValues(name, "discovered").Set(float64(r.Discovered))
		runRepositories.WithLabelValues(name, "mirrored").Set(float64(r.Mirrored))
		runRepositories.WithLabelValues(name, "updated").Set(float64(r.Updated))
		runRepositories.WithLabelValues(name, "up-to-date").Set(float64(r.UpToDate))
		runRepositories.WithLabelValues(name, "failed").Set(float64(r.Failed))
		runRepositories.WithLabelValues(name, "skipped").Set(float64(r.Skipped))
	}
}
