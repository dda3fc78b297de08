// Package metrics exposes Prometheus collectors for runs, steps, and event
// intake on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tipflow/internal/step"
)

const namespace = "tipflow"

// Metrics groups the collectors registered by the daemon.
type Metrics struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	stepAttempts *prometheus.CounterVec
	events       *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Workflow runs that reached a final state for one attempt.",
		}, []string{"workflow", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one run attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}, []string{"workflow", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Durable steps by outcome.",
		}, []string{"workflow", "step", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time spent in a step, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow", "step"}),
		stepAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Step function invocations, retries included.",
		}, []string{"workflow", "step"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Upload events received per intake source and result.",
		}, []string{"source", "result"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_runs",
			Help:      "Runs in the store per status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs,
		m.runDuration,
		m.steps,
		m.stepDuration,
		m.stepAttempts,
		m.events,
		m.queueDepth,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RunFinished records the end of one run attempt.
func (m *Metrics) RunFinished(workflow, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflow, status).Inc()
	m.runDuration.WithLabelValues(workflow, status).Observe(elapsed.Seconds())
}

// StepFinished implements step.Observer.
func (m *Metrics) StepFinished(workflow, name string, outcome step.Outcome, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(workflow, name, string(outcome)).Inc()
	if attempts > 0 {
		m.stepAttempts.WithLabelValues(workflow, name).Add(float64(attempts))
	}
	if outcome != step.OutcomeReplayed {
		m.stepDuration.WithLabelValues(workflow, name).Observe(elapsed.Seconds())
	}
}

// EventReceived counts one intake decision.
func (m *Metrics) EventReceived(source, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(source, result).Inc()
}

// SetQueueDepth publishes the latest per-status run counts.
func (m *Metrics) SetQueueDepth(counts map[string]int) {
	if m == nil {
		return
	}
	for status, count := range counts {
		m.queueDepth.WithLabelValues(status).Set(float64(count))
	}
}
