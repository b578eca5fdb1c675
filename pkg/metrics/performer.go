package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PerformerMetrics provides observability for folder operations.
//
// This interface is optional - a nil PerformerMetrics given to the
// performers is replaced by a no-op implementation.
type PerformerMetrics interface {
	// RecordOperation records a completed operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "list", "create", "update")
	//   - duration: Time taken to complete the operation
	//   - code: Outcome ("ok" or the folder error code)
	RecordOperation(operation string, duration time.Duration, code string)

	// RecordFanOut records how many concurrent storage tasks an operation
	// dispatched.
	RecordFanOut(operation string, tasks int)

	// RecordWarnings records warnings returned alongside a result.
	RecordWarnings(operation string, count int)

	// RecordTermination records how a storage transaction ended
	// ("commit", "rollback", "commit_failed", "rollback_failed").
	RecordTermination(storage, outcome string)
}

type performerMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	fanOutTasks       *prometheus.HistogramVec
	warningsTotal     *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
}

// NewPerformerMetrics creates a Prometheus-backed PerformerMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewPerformerMetrics() PerformerMetrics {
	if !IsEnabled() {
		return NewNoopPerformerMetrics()
	}

	reg := GetRegistry()

	return &performerMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofolders_operations_total",
				Help: "Total number of folder operations by operation and outcome code",
			},
			[]string{"operation", "code"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittofolders_operation_duration_seconds",
				Help: "Duration of folder operations in seconds",
				Buckets: []float64{
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.025,  // 25ms
					0.1,    // 100ms
					0.5,    // 500ms
					2.5,    // 2.5s
				},
			},
			[]string{"operation"},
		),
		fanOutTasks: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittofolders_fanout_tasks",
				Help:    "Number of concurrent storage tasks per fan-out",
				Buckets: []float64{1, 2, 3, 5, 8, 13},
			},
			[]string{"operation"},
		),
		warningsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofolders_warnings_total",
				Help: "Total number of warnings returned by folder operations",
			},
			[]string{"operation"},
		),
		transactionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofolders_storage_transactions_total",
				Help: "Storage transactions terminated by the coordinator, by storage and outcome",
			},
			[]string{"storage", "outcome"},
		),
	}
}

func (m *performerMetrics) RecordOperation(operation string, duration time.Duration, code string) {
	m.operationsTotal.WithLabelValues(operation, code).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *performerMetrics) RecordFanOut(operation string, tasks int) {
	m.fanOutTasks.WithLabelValues(operation).Observe(float64(tasks))
}

func (m *performerMetrics) RecordWarnings(operation string, count int) {
	if count > 0 {
		m.warningsTotal.WithLabelValues(operation).Add(float64(count))
	}
}

func (m *performerMetrics) RecordTermination(storage, outcome string) {
	m.transactionsTotal.WithLabelValues(storage, outcome).Inc()
}

type noopPerformerMetrics struct{}

// NewNoopPerformerMetrics returns a PerformerMetrics that records nothing.
func NewNoopPerformerMetrics() PerformerMetrics {
	return noopPerformerMetrics{}
}

func (noopPerformerMetrics) RecordOperation(string, time.Duration, string) {}
func (noopPerformerMetrics) RecordFanOut(string, int)                      {}
func (noopPerformerMetrics) RecordWarnings(string, int)                    {}
func (noopPerformerMetrics) RecordTermination(string, string)              {}
