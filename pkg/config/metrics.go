package config

import (
	"context"

	"github.com/marmos91/dittofolders/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Performer is the metrics collector of the folder service (never nil, uses noop if disabled)
	Performer metrics.PerformerMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server, answering /healthz with health
//   - Creates Prometheus-backed performer metrics
//
// Storages created afterwards pick up Prometheus-backed storage metrics, so
// call InitializeMetrics before InitializeRegistry.
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config, health func(ctx context.Context) error) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Performer: metrics.NewNoopPerformerMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:   cfg.Metrics.Port,
		Health: health,
	})

	return &MetricsResult{
		Server:    server,
		Performer: metrics.NewPerformerMetrics(),
	}
}
