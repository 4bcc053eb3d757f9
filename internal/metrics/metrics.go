// Package metrics counts scenario outcomes in Prometheus form. A run's registry is written
// to a textfile for the node exporter's textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

const namespace = "shelfcheck"

// Recorder is a scenario.Observer backed by its own registry.
type Recorder struct {
	registry *prometheus.Registry

	scenarios *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	lastRun   prometheus.Gauge
	runFailed prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		scenarios: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scenario",
				Name:      "finished_total",
				Help:      "Scenarios finished, by suite and result",
			},
			[]string{"suite", "result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scenario",
				Name:      "duration_seconds",
				Help:      "Scenario wall time in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"suite"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scenario",
				Name:      "failures_total",
				Help:      "Failed scenarios by failure kind",
			},
			[]string{"suite", "kind"},
		),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		runFailed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "failed_scenarios",
			Help:      "Failed scenarios in the last run",
		}),
	}
}

// ScenarioFinished implements scenario.Observer.
func (r *Recorder) ScenarioFinished(res scenario.Result) {
	suite := string(res.Suite)
	result := "passed"
	if !res.Passed {
		result = "failed"
		r.failures.WithLabelValues(suite, string(res.Kind)).Inc()
	}
	r.scenarios.WithLabelValues(suite, result).Inc()
	r.duration.WithLabelValues(suite).Observe(res.Duration.Seconds())
}

// RunFinished records the run-level gauges.
func (r *Recorder) RunFinished(run *scenario.RunResult) {
	r.lastRun.Set(float64(run.Started.Add(run.Duration).Unix()))
	r.runFailed.Set(float64(run.Failed()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

var _ scenario.Observer = (*Recorder)(nil)
