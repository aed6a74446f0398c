package main

import (
	"kontrol/internal/config"
	"kontrol/internal/metrics"
	"kontrol/internal/metrics/datadog"
	"kontrol/internal/metrics/prompush"
)

// newMetricsBackend returns nil for the "none" backend.
func newMetricsBackend(cfg config.Metrics) (metrics.Backend, error) {
	switch cfg.Backend {
	case "pushgateway":
		return prompush.NewBackend(cfg.Job, cfg.Instance, cfg.URL)
	case "datadog":
		return datadog.NewBackend(datadog.Config{
			Addr:       cfg.Addr,
			Namespace:  cfg.Namespace,
			GlobalTags: cfg.Tags,
		})
	default:
		return nil, nil
	}
}
