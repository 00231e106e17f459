// Package jobmetrics instruments the background jobs of the worker.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  *prometheus.GaugeVec
	checked  *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer shares one
// instance registered on the default Prometheus registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Job executions by job type and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job execution time.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Jobs currently executing.",
		}, []string{"job"}),
		checked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "integrity",
			Name:      "fiscal_years_checked_total",
			Help:      "Fiscal years verified by the integrity job by outcome.",
		}, []string{"outcome"}),
	}
	registerer.MustRegister(m.runs, m.duration, m.running, m.checked)
	return m
}

// Run is one in-progress job execution.
type Run struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track marks job as running until End is called on the returned Run.
func (m *Metrics) Track(job string) *Run {
	if m != nil {
		m.running.WithLabelValues(job).Inc()
	}
	return &Run{m: m, job: job, start: time.Now()}
}

// End records the outcome of the run and passes err through.
func (r *Run) End(err error) error {
	if r == nil || r.m == nil {
		return err
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.m.running.WithLabelValues(r.job).Dec()
	r.m.runs.WithLabelValues(r.job, outcome).Inc()
	r.m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	return err
}

// AddChecked counts fiscal years verified by the integrity job. Outcomes are balanced,
// unbalanced and error.
func (m *Metrics) AddChecked(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.checked.WithLabelValues(outcome).Add(float64(n))
}
