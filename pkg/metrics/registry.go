// Package metrics provides Prometheus metrics collection for performers and
// storages.
//
// All metrics are optional - if not initialized, components use no-op
// implementations. This allows the folder service to run with or without
// metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	performerMetrics := metrics.NewPerformerMetrics()
//	badgerMetrics := metrics.NewStorageMetrics("badger")
//
//	// Or use nil for no-op behavior
//	svc := performer.New(performer.Options{Metrics: nil})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// written once by InitRegistry
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go
// runtime and process collectors.
//
// Call it before creating any metrics instances. Subsequent calls are ignored.
// If never called, GetRegistry() returns nil and every constructor returns a
// no-op implementation.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
