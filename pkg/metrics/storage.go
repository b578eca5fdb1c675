package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageMetrics provides observability for low-level storage calls
// (badger reads and writes, S3 requests, SQL statements).
type StorageMetrics interface {
	// RecordStorageOperation records a backend call.
	//
	// Parameters:
	//   - operation: Backend operation (e.g., "get", "put", "scan", "commit")
	//   - duration: Time taken
	//   - err: Error if failed
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

var (
	storageOpsOnce     sync.Once
	storageOpsTotal    *prometheus.CounterVec
	storageOpsDuration *prometheus.HistogramVec
)

type storageMetrics struct {
	storeType string
}

// NewStorageMetrics creates Prometheus-backed StorageMetrics labelled with
// the storage type. Several storages share the same collectors.
//
// Returns a no-op implementation if metrics are not enabled.
func NewStorageMetrics(storeType string) StorageMetrics {
	if !IsEnabled() {
		return NewNoopStorageMetrics()
	}

	storageOpsOnce.Do(func() {
		reg := GetRegistry()
		storageOpsTotal = promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofolders_storage_operations_total",
				Help: "Total number of low-level storage operations by storage type, operation and status",
			},
			[]string{"store_type", "operation", "status"},
		)
		storageOpsDuration = promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittofolders_storage_operation_duration_seconds",
				Help: "Duration of low-level storage operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1.0,    // 1s
				},
			},
			[]string{"store_type", "operation"},
		)
	})

	return &storageMetrics{storeType: storeType}
}

func (m *storageMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	storageOpsTotal.WithLabelValues(m.storeType, operation, status).Inc()
	storageOpsDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}

type noopStorageMetrics struct{}

// NewNoopStorageMetrics returns a StorageMetrics that records nothing.
func NewNoopStorageMetrics() StorageMetrics {
	return noopStorageMetrics{}
}

func (noopStorageMetrics) RecordStorageOperation(string, time.Duration, error) {}
