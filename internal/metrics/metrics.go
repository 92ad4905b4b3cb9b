// Package metrics exposes extraction counters and timings for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded per extraction.
const (
	OutcomeExtracted    = "extracted"
	OutcomeEmpty        = "empty"
	OutcomeFailed       = "failed"
	OutcomeDeduplicated = "deduplicated"
)

// Metrics owns its registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	extractions       *prometheus.CounterVec
	extractDuration   *prometheus.HistogramVec
	lineItemsDropped  prometheus.Counter
	jobsInQueue       prometheus.Gauge
	activeWorkers     prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_extractions_total",
			Help: "Documents processed, labelled by channel and outcome",
		}, []string{"channel", "outcome"}),
		extractDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoice_extraction_duration_seconds",
			Help:    "Time spent extracting one document.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		}, []string{"channel"}),
		lineItemsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "invoice_line_items_dropped_total",
			Help: "Line item candidates rejected by quantity x price validation",
		}),
		jobsInQueue: f.NewGauge(prometheus.GaugeOpts{
			Name: "invoice_jobs_in_queue",
			Help: "Number of jobs waiting for a worker",
		}),
		activeWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "invoice_active_workers",
			Help: "Number of workers currently processing a job",
		}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of requests labelled by path and status",
		}, []string{"path", "status"}),
	}
}

// ObserveExtraction records one processed document.
func (m *Metrics) ObserveExtraction(channel, outcome string, elapsed time.Duration, dropped int) {
	if m == nil {
		return
	}
	if channel == "" {
		channel = "unknown"
	}
	m.extractions.WithLabelValues(channel, outcome).Inc()
	m.extractDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
	if dropped > 0 {
		m.lineItemsDropped.Add(float64(dropped))
	}
}

func (m *Metrics) IncrementJobsInQueue() {
	if m != nil {
		m.jobsInQueue.Inc()
	}
}

func (m *Metrics) DecrementJobsInQueue() {
	if m != nil {
		m.jobsInQueue.Dec()
	}
}

func (m *Metrics) IncrementActiveWorkers() {
	if m != nil {
		m.activeWorkers.Inc()
	}
}

func (m *Metrics) DecrementActiveWorkers() {
	if m != nil {
		m.activeWorkers.Dec()
	}
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(path string, status int) {
	if m != nil {
		m.httpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StatusRecorder captures the response status for ObserveHTTP.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}
