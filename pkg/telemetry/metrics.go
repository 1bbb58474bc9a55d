package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for runs, workunits and tasks. A
// disabled Metrics value is a safe no-op.
type Metrics struct {
	config MetricsConfig

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	tasksExecuted *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec

	workunitsOpen prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of runs completed, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		tasksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_executed_total",
			Help:      "Total number of tasks executed, by outcome.",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Per-workunit duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"workunit"}),
		workunitsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workunits_open",
			Help:      "Number of currently open workunits.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.tasksExecuted, m.taskDuration, m.workunitsOpen,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the underlying registry for scraping or test assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunStarted records the start of a run.
func (m *Metrics) RunStarted() {
	if m.registry == nil {
		return
	}
	m.runsStarted.Inc()
}

// RunCompleted records a finished run with its outcome and duration.
func (m *Metrics) RunCompleted(outcome string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
}

// WorkUnitOpened records an opened workunit.
func (m *Metrics) WorkUnitOpened() {
	if m.registry == nil {
		return
	}
	m.workunitsOpen.Inc()
}

// WorkUnitClosed records a closed workunit with its outcome and duration.
func (m *Metrics) WorkUnitClosed(name, outcome string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.workunitsOpen.Dec()
	m.tasksExecuted.WithLabelValues(outcome).Inc()
	m.taskDuration.WithLabelValues(name).Observe(d.Seconds())
}
