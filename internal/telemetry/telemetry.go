package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus instruments for the scan pipeline. A nil
// *Metrics is valid and records nothing, so tests and the one-shot CLI can
// skip registration.
type Metrics struct {
	jobsTotal        *prometheus.CounterVec
	jobDuration      prometheus.Histogram
	sourceItems      *prometheus.CounterVec
	sourceFailures   *prometheus.CounterVec
	resolverOutcomes *prometheus.CounterVec
	llmDuration      prometheus.Histogram
}

// New registers the pipeline metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitrep_jobs_total",
			Help: "Scan jobs by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitrep_job_duration_seconds",
			Help:    "Wall time of a scan job from pickup to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		sourceItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitrep_source_items_total",
			Help: "Items returned per source adapter.",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitrep_source_failures_total",
			Help: "Fetch failures per source adapter.",
		}, []string{"source"}),
		resolverOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitrep_resolver_outcomes_total",
			Help: "Link resolution outcomes.",
		}, []string{"outcome"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitrep_llm_duration_seconds",
			Help:    "Latency of report synthesis calls.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	reg.MustRegister(m.jobsTotal, m.jobDuration, m.sourceItems, m.sourceFailures, m.resolverOutcomes, m.llmDuration)
	return m
}

func (m *Metrics) JobFinished(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
	m.jobDuration.Observe(took.Seconds())
}

func (m *Metrics) SourceItems(source string, count int) {
	if m == nil {
		return
	}
	m.sourceItems.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) SourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ResolverOutcome(outcome string) {
	if m == nil {
		return
	}
	m.resolverOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LLMCall(took time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.Observe(took.Seconds())
}
