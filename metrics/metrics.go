// Package metrics exposes Prometheus metrics about migration runs.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.hackfix.me/sqlmgr/migration"
)

const namespace = "sqlmgr"

// Result label values.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Collector records engine runs as Prometheus metrics. It implements
// migration.Observer and migration.StepObserver.
type Collector struct {
	runs       *prometheus.CounterVec
	migrations *prometheus.CounterVec
	stepTime   *prometheus.HistogramVec
	lastRun    *prometheus.GaugeVec
	running    prometheus.Gauge
}

var (
	_ migration.Observer     = (*Collector)(nil)
	_ migration.StepObserver = (*Collector)(nil)
)

// NewCollector returns a new Collector. Its metrics must be registered with
// PrometheusCollectors or Register before they're exposed.
func NewCollector() *Collector {
	return &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Number of migration runs, by operation and result.",
		}, []string{"operation", "dry_run", "result"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "steps_total",
			Help:      "Number of executed migration steps, by operation and result.",
		}, []string{"operation", "result"}),
		stepTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "step_duration_seconds",
			Help:      "Execution time of migration steps.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"operation"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time at which the last run finished, by operation and result.",
		}, []string{"operation", "result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "in_progress",
			Help:      "Number of runs currently in progress in this process.",
		}),
	}
}

// PrometheusCollectors returns the metrics of the collector.
func (c *Collector) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{c.runs, c.migrations, c.stepTime, c.lastRun, c.running}
}

// Register registers all metrics with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, pc := range c.PrometheusCollectors() {
		if err := reg.Register(pc); err != nil {
			return err //nolint:wrapcheck // Registration errors are descriptive.
		}
	}
	return nil
}

// RunStarted implements migration.Observer.
func (c *Collector) RunStarted(_ context.Context, _ *migration.Report) {
	c.running.Inc()
}

// RunFinished implements migration.Observer.
func (c *Collector) RunFinished(_ context.Context, r *migration.Report, err error) {
	c.running.Dec()

	result := resultOf(err)
	dryRun := "false"
	if r.DryRun {
		dryRun = "true"
	}
	c.runs.WithLabelValues(string(r.Operation), dryRun, result).Inc()

	finished := r.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	c.lastRun.WithLabelValues(string(r.Operation), result).Set(float64(finished.UnixMilli()) / 1e3)
}

// StepFinished implements migration.StepObserver.
func (c *Collector) StepFinished(
	_ context.Context, r *migration.Report, _ string, elapsed time.Duration, err error,
) {
	c.migrations.WithLabelValues(string(r.Operation), resultOf(err)).Inc()
	c.stepTime.WithLabelValues(string(r.Operation)).Observe(elapsed.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}
