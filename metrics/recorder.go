// Package metrics records Prometheus metrics for a harness run and can export them in the
// node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/launchdarkly/roll-forward-tests/framework"
	"github.com/launchdarkly/roll-forward-tests/process"
)

const namespace = "rft"

// Recorder collects run metrics in its own registry. It is a framework.TestLogger, so it
// can be combined with the console logger to observe case outcomes.
type Recorder struct {
	registry *prometheus.Registry

	cases       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	steps       *prometheus.HistogramVec
	serverKills *prometheus.CounterVec
	lastRun     prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cases_total",
				Help:      "Test cases by outcome (passed, failed, skipped)",
			},
			[]string{"outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "case_failures_total",
				Help:      "Failed test cases by failure kind",
			},
			[]string{"kind"},
		),
		steps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of case steps",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind", "outcome"},
		),
		serverKills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "server_kills_total",
				Help:      "SIGKILLs sent to servers under test, by reason (deadline, stop)",
			},
			[]string{"reason"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time at which the last run finished",
			},
		),
	}
	r.registry.MustRegister(r.cases, r.failures, r.steps, r.serverKills, r.lastRun)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) TestStarted(framework.CaseID) {}

func (r *Recorder) TestError(framework.CaseID, error) {}

func (r *Recorder) TestFinished(_ framework.CaseID, failed bool, _ framework.CapturedOutput) {
	if failed {
		r.cases.WithLabelValues("failed").Inc()
	} else {
		r.cases.WithLabelValues("passed").Inc()
	}
}

func (r *Recorder) TestSkipped(framework.CaseID, string) {
	r.cases.WithLabelValues("skipped").Inc()
}

// ObserveStep records a step's duration. Steps that ended their case early are labeled
// "error".
func (r *Recorder) ObserveStep(kind string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.steps.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

func (r *Recorder) ServerKilled(reason process.KillReason) {
	r.serverKills.WithLabelValues(string(reason)).Inc()
}

// RunFinished records the failure kinds of a completed run.
func (r *Recorder) RunFinished(results framework.Results) {
	for _, f := range results.Failures {
		r.failures.WithLabelValues(string(f.Kind)).Inc()
	}
	r.lastRun.SetToCurrentTime()
}

// WriteFile writes the current metrics to path in the textfile format.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
