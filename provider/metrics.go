package provider

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// discoveredRepos is a Gauge of repositories returned by the last discovery
	discoveredRepos *prometheus.GaugeVec
	// excludedRepos is a Gauge of repositories dropped by the source filter
	excludedRepos *prometheus.GaugeVec
	// discoveryErrors is a Counter of failed discoveries
	discoveryErrors *prometheus.CounterVec
)

// EnableMetrics will enable metrics collection for repository discovery.
// Available metrics are...
//   - git_backup_discovered_repositories - (tags: source)
//     A Gauge of repositories kept by the last discovery of the source.
//   - git_backup_excluded_repositories - (tags: source)
//     A Gauge of repositories excluded by the filter in the last discovery.
//   - git_backup_discovery_errors_total - (tags: source)
//     A Counter of failed discoveries.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	discoveredRepos = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_discovered_repositories",
		Help:      "Count of repositories returned by the last discovery",
	}, []string{"source"})

	excludedRepos = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_excluded_repositories",
		Help:      "Count of repositories excluded by the source filter",
	}, []string{"source"})

	discoveryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "git_backup_discovery_errors_total",
		Help:      "Count of failed repository discoveries",
	}, []string{"source"})

	registerer.MustRegister(
		discoveredRepos,
		excludedRepos,
		discoveryErrors,
	)
}

func recordDiscovery(source string, discovered, excluded int) {
	// if metrics not enabled return
	if discoveredRepos == nil || excludedRepos == nil {
		return
	}
	discoveredRepos.WithLabelValues(source).Set(float64(discovered))
	excludedRepos.WithLabelValues(source).Set(float64(excluded))
}

func recordDiscoveryError(source string) {
	if discoveryErrors == nil {
		return
	}
	discoveryErrors.WithLabelValues(source).Inc()
}
