package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Probes        *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
	Replacements  *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	Findings      *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer yields unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourceguard_probes_total",
				Help: "Source URL probes by verdict status and reason",
			},
			[]string{"status", "reason"},
		),
		ProbeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sourceguard_probe_duration_seconds",
				Help:    "Latency of individual source probes",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
		),
		Replacements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourceguard_replacement_searches_total",
				Help: "Replacement searches by result (found, not_found, error)",
			},
			[]string{"result"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourceguard_pipeline_runs_total",
				Help: "Pipeline runs by terminal state",
			},
			[]string{"state"},
		),
		Findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourceguard_findings_total",
				Help: "Quality findings by severity and code",
			},
			[]string{"severity", "code"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Probes, m.ProbeDuration, m.Replacements, m.Runs, m.Findings)
	}
	return m
}

// ObserveProbe records one network probe.
func (m *Metrics) ObserveProbe(status, reason string, took time.Duration) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.Probes.WithLabelValues(status, reason).Inc()
	m.ProbeDuration.Observe(took.Seconds())
}

// ObserveReplacement records one replacement search result.
func (m *Metrics) ObserveReplacement(result string) {
	if m == nil {
		return
	}
	m.Replacements.WithLabelValues(result).Inc()
}

// ObserveRun records a terminal pipeline state.
func (m *Metrics) ObserveRun(state string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(state).Inc()
}

// ObserveFinding records one finding.
func (m *Metrics) ObserveFinding(severity, code string) {
	if m == nil {
		return
	}
	m.Findings.WithLabelValues(severity, code).Inc()
}
