package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.ReportCardsTotal)
	assert.NotNil(t, m.WSClients)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/results", 200, 5*time.Millisecond)
	m.ObserveHTTP("GET", "/api/results", 200, 5*time.Millisecond)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `dashboard_http_requests_total{method="GET",route="/api/results",status="200"} 2`)
	assert.Contains(t, body, "dashboard_http_request_duration_seconds")
}

func TestMetrics_RecordRun(t *testing.T) {
	m := New()
	m.RecordRun("ci-upload", false)
	m.RecordRun("dashboard-run", true)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `dashboard_runs_recorded_total{result="passed",source="ci-upload"} 1`)
	assert.Contains(t, body, `dashboard_runs_recorded_total{result="failed",source="dashboard-run"} 1`)
}

func TestMetrics_RecordCard(t *testing.T) {
	m := New()
	m.RecordCard("kanban", "created", 100*time.Millisecond)
	m.RecordCard("kanban", "error", time.Second)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `dashboard_report_cards_total{outcome="created",tracker="kanban"} 1`)
	assert.Contains(t, body, `dashboard_report_cards_total{outcome="error",tracker="kanban"} 1`)
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()
	m.SetWSClients(3)
	m.EventDropped()
	m.RecordSession("created")
	m.RecordItemUpdate("failed")
	m.RecordJob("completed")
	m.RecordError("report", "timeout")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "dashboard_ws_clients 3")
	assert.Contains(t, body, "dashboard_events_dropped_total 1")
	assert.Contains(t, body, `dashboard_sessions_total{event="created"} 1`)
	assert.Contains(t, body, `dashboard_item_updates_total{status="failed"} 1`)
	assert.Contains(t, body, `dashboard_runner_jobs_total{outcome="completed"} 1`)
	assert.Contains(t, body, `dashboard_errors_total{module="report",type="timeout"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.RecordRun("ci-upload", false)
		m.RecordSession("created")
		m.RecordItemUpdate("passed")
		m.RecordCard("jira", "created", time.Millisecond)
		m.RecordJob("failed")
		m.SetWSClients(1)
		m.EventDropped()
		m.RecordError("x", "y")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}
