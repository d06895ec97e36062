package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushgatewayJob = "git-backup"

// exportMetrics writes gathered metrics to the textfile and pushes them to the
// pushgateway, both are optional. errors are only logged.
func exportMetrics(reg *prometheus.Registry, textfile, pushgatewayURL string, log *slog.Logger) {
	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, reg); err != nil {
			log.Error("unable to write metrics textfile", "path", textfile, "err", err)
		} else {
			log.Debug("metrics written", "path", textfile)
		}
	}

	if pushgatewayURL != "" {
		if err := push.New(pushgatewayURL, pushgatewayJob).Gatherer(reg).Push(); err != nil {
			log.Error("unable to push metrics", "url", pushgatewayURL, "err", err)
		} else {
			log.Debug("metrics pushed", "url", pushgatewayURL)
		}
	}
}
