// Package metrics provides Prometheus metrics for the dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RunsRecordedTotal   *prometheus.CounterVec
	SessionsTotal       *prometheus.CounterVec
	ItemUpdatesTotal    *prometheus.CounterVec
	ReportCardsTotal    *prometheus.CounterVec
	TrackerDuration     *prometheus.HistogramVec
	RunnerJobsTotal     *prometheus.CounterVec
	WSClients           prometheus.Gauge
	EventsDroppedTotal  prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_http_requests_total",
				Help: "API requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_http_request_duration_seconds",
				Help:    "API request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RunsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_runs_recorded_total",
				Help: "Automated test runs recorded by source and result.",
			},
			[]string{"source", "result"},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_sessions_total",
				Help: "Manual test sessions by lifecycle event.",
			},
			[]string{"event"},
		),
		ItemUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_item_updates_total",
				Help: "Manual test item updates by resulting status.",
			},
			[]string{"status"},
		),
		ReportCardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_report_cards_total",
				Help: "Bug cards submitted to the tracker by outcome.",
			},
			[]string{"tracker", "outcome"},
		),
		TrackerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_tracker_request_duration_seconds",
				Help:    "Bug tracker call latency.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"tracker"},
		),
		RunnerJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_runner_jobs_total",
				Help: "Background Playwright jobs by outcome.",
			},
			[]string{"outcome"},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashboard_ws_clients",
				Help: "Connected live-update clients.",
			},
		),
		EventsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_events_dropped_total",
				Help: "Live-update events dropped for slow clients.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_errors_total",
				Help: "Errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RunsRecordedTotal,
		m.SessionsTotal,
		m.ItemUpdatesTotal,
		m.ReportCardsTotal,
		m.TrackerDuration,
		m.RunnerJobsTotal,
		m.WSClients,
		m.EventsDroppedTotal,
		m.ErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Register adds an extra collector, such as a cache gauge, to the registry.
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRun counts a recorded run.
func (m *Metrics) RecordRun(source string, failed bool) {
	if m == nil {
		return
	}
	result := "passed"
	if failed {
		result = "failed"
	}
	m.RunsRecordedTotal.WithLabelValues(source, result).Inc()
}

// RecordSession counts a session lifecycle event (created, completed, cancelled).
func (m *Metrics) RecordSession(event string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(event).Inc()
}

// RecordItemUpdate counts an item status change.
func (m *Metrics) RecordItemUpdate(status string) {
	if m == nil {
		return
	}
	m.ItemUpdatesTotal.WithLabelValues(status).Inc()
}

// RecordCard counts a tracker submission and its latency.
func (m *Metrics) RecordCard(tracker, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportCardsTotal.WithLabelValues(tracker, outcome).Inc()
	m.TrackerDuration.WithLabelValues(tracker).Observe(d.Seconds())
}

// RecordJob counts a finished background job.
func (m *Metrics) RecordJob(outcome string) {
	if m == nil {
		return
	}
	m.RunnerJobsTotal.WithLabelValues(outcome).Inc()
}

// SetWSClients sets the connected client gauge.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

// EventDropped counts one dropped live-update event.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDroppedTotal.Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
