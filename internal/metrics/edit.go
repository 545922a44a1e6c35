package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wegman-software/osmedit/internal/editerr"
)

// Metric names
const (
	MetricCheckpointsTotal   = "osmedit_checkpoints_total"
	MetricElementsTouched    = "osmedit_elements_touched_total"
	MetricUndoTotal          = "osmedit_undo_total"
	MetricFailuresTotal      = "osmedit_operation_failures_total"
	MetricJobDuration        = "osmedit_job_duration_seconds"
	MetricProcessMemoryBytes = "osmedit_process_resident_bytes"
	MetricProcessCPUPercent  = "osmedit_process_cpu_percent"
)

// EditMetrics counts editing activity. It implements graph.Observer and
// owns its own registry so a session's numbers can be written to a textfile.
type EditMetrics struct {
	registry    *prometheus.Registry
	checkpoints *prometheus.CounterVec
	elements    prometheus.Counter
	undos       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	jobs        *prometheus.HistogramVec
	memory      prometheus.Gauge
	cpu         prometheus.Gauge
}

// NewEditMetrics creates the metrics and registers them on a fresh registry
func NewEditMetrics() *EditMetrics {
	m := &EditMetrics{
		registry: prometheus.NewRegistry(),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCheckpointsTotal,
			Help: "Committed undo checkpoints by name",
		}, []string{"name"}),
		elements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricElementsTouched,
			Help: "Elements recorded in committed checkpoints",
		}),
		undos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUndoTotal,
			Help: "Undone checkpoints by name",
		}, []string{"name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFailuresTotal,
			Help: "Failed editing operations by operation and error kind",
		}, []string{"op", "kind"}),
		jobs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricJobDuration,
			Help:    "Background job duration by job and outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"job", "status"}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricProcessMemoryBytes,
			Help: "Resident memory of the editor process",
		}),
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricProcessCPUPercent,
			Help: "CPU usage of the editor process",
		}),
	}
	m.registry.MustRegister(m.checkpoints, m.elements, m.undos, m.failures, m.jobs, m.memory, m.cpu)
	return m
}

// Registry returns the registry holding every edit metric
func (m *EditMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// CheckpointCommitted implements graph.Observer
func (m *EditMetrics) CheckpointCommitted(name string, elements int) {
	m.checkpoints.WithLabelValues(name).Inc()
	m.elements.Add(float64(elements))
}

// CheckpointUndone implements graph.Observer
func (m *EditMetrics) CheckpointUndone(name string) {
	m.undos.WithLabelValues(name).Inc()
}

// OperationFailed implements graph.Observer
func (m *EditMetrics) OperationFailed(op string, err error) {
	m.failures.WithLabelValues(op, editerr.KindOf(err).String()).Inc()
}

// ObserveJob records the duration of a background job
func (m *EditMetrics) ObserveJob(job string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.jobs.WithLabelValues(job, status).Observe(d.Seconds())
}

func (m *EditMetrics) observeSystem(s *SystemMetrics) {
	m.memory.Set(float64(s.ProcessRSSBytes))
	m.cpu.Set(s.ProcessCPUPercent)
}

// WriteFile writes every metric to path in the Prometheus text format
func (m *EditMetrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
