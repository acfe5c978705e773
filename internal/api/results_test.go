package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/results"
)

type uploadResponse struct {
	Message string     `json:"message"`
	Run     models.Run `json:"run"`
}

func TestUploadResults(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/upload/kanban",
		`{"stats":{"total":5,"passed":3,"failed":2,"skipped":0,"duration":1234.5},"suites":[{"title":"auth"}],"errors":[]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[uploadResponse](t, resp)
	assert.Equal(t, "Results uploaded", body.Message)
	assert.Equal(t, 1, body.Run.ExitCode)
	assert.Equal(t, results.SourceUpload, body.Run.Source)
	assert.Equal(t, 2, body.Run.Stats.Failed)

	resp = env.do(t, "POST", "/api/upload/kanban", `{"stats":{"total":1,"passed":1},"source":"nightly"}`)
	body = decode[uploadResponse](t, resp)
	assert.Equal(t, 0, body.Run.ExitCode)
	assert.Equal(t, "nightly", body.Run.Source)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing stats", "/api/upload/kanban", `{"suites":[]}`},
		{"invalid project", "/api/upload/bad.id", `{"stats":{"total":1}}`},
		{"negative counts", "/api/upload/kanban", `{"stats":{"total":-1}}`},
		{"bad json", "/api/upload/kanban", `{"stats":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", tt.path, tt.body).StatusCode)
		})
	}
}

func TestResultsReadEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/results", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[map[string]models.ProjectSummary](t, resp)
	assert.Equal(t, "unknown", summary["kanban"].Status)
	assert.Nil(t, summary["kanban"].LastRun)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/upload/kanban",
		`{"stats":{"total":2,"passed":1,"failed":1},"suites":[{"title":"a"}]}`).StatusCode)

	summary = decode[map[string]models.ProjectSummary](t, env.do(t, "GET", "/api/results", ""))
	assert.Equal(t, "failed", summary["kanban"].Status)
	assert.Equal(t, 1, summary["kanban"].Failed)
	assert.Equal(t, "unknown", summary["docs"].Status)

	resp = env.do(t, "GET", "/api/results/kanban", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decode[results.ProjectRuns](t, resp)
	require.Len(t, runs.Runs, 1)
	require.NotNil(t, runs.LastRun)
	assert.JSONEq(t, `[{"title":"a"}]`, string(runs.Runs[0].Suites))

	resp = env.do(t, "GET", "/api/history/kanban", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]models.Run](t, resp)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].Suites)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/results/unknown", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/history/unknown", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/history/bad.id", "").StatusCode)
}

func TestProjects(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/projects", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	projects := decode[[]models.Project](t, resp)
	require.Len(t, projects, 2)
	assert.Equal(t, "Docs", projects[0].Name)
	assert.Equal(t, "Kanban", projects[1].Name)
}

func TestPoll(t *testing.T) {
	env := newTestEnv(t)

	res := decode[results.PollResult](t, env.do(t, "GET", "/api/poll", ""))
	assert.Nil(t, res.Latest)
	assert.False(t, res.HasUpdates)

	before := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/upload/kanban", `{"stats":{"total":1,"passed":1}}`).StatusCode)

	res = decode[results.PollResult](t, env.do(t, "GET", "/api/poll?since="+before, ""))
	require.NotNil(t, res.Latest)
	assert.True(t, res.HasUpdates)

	after := time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
	res = decode[results.PollResult](t, env.do(t, "GET", "/api/poll?since="+after, ""))
	assert.False(t, res.HasUpdates)

	res = decode[results.PollResult](t, env.do(t, "GET", "/api/poll?since=yesterday", ""))
	assert.False(t, res.HasUpdates)
}
