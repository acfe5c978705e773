package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/results"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-color"))
	err := root.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanban.md")
	md := "# Kanban - E2E Test Checklist\n## Auth\n- [ ] Login works\n### Edge Cases\n- [ ] Login with bad password\n## Known Issues\n- [ ] Should not appear\n"
	require.NoError(t, os.WriteFile(path, []byte(md), 0o644))

	out, err := run(t, "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Kanban\n")
	assert.Contains(t, out, "1 categories, 2 items")
	assert.Contains(t, out, "Auth > Edge Cases")
	assert.Contains(t, out, "Login with bad password")
	assert.NotContains(t, out, "Should not appear")

	out, err = run(t, "parse", path, "--json")
	require.NoError(t, err)
	var doc struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []string{"Auth"}, doc.Categories)

	_, err = run(t, "parse", filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestUploadCommand(t *testing.T) {
	var got results.Upload
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Results uploaded",
			"run": models.Run{
				ID: 1700000000000, ProjectID: "kanban", Stats: *got.Stats, Source: got.Source, ExitCode: got.Stats.ExitCode(),
			},
		})
	}))
	defer srv.Close()

	out, err := run(t, "upload", "kanban", "../playwright/testdata/report.json", "--server", srv.URL, "--source", "ci")
	require.NoError(t, err)

	assert.Equal(t, "/api/upload/kanban", gotPath)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 4, got.Stats.Total)
	assert.Equal(t, 1, got.Stats.Failed)
	assert.Equal(t, "ci", got.Source)
	assert.NotEmpty(t, got.Suites)

	assert.Contains(t, out, "Uploaded run 1700000000000 for kanban: FAILED 2/4 passed, 1 failed, 1 skipped")
	assert.Contains(t, out, "bad password shows error")
}

func TestUploadCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"validation_error","status":400,"detail":"Invalid stats object"}`))
	}))
	defer srv.Close()

	_, err := run(t, "upload", "kanban", "../playwright/testdata/report.json", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid stats object")
	assert.Contains(t, err.Error(), "status 400")

	_, err = run(t, "upload", "bad.id", "../playwright/testdata/report.json", "--server", srv.URL)
	assert.ErrorContains(t, err, "invalid project ID")
}

func TestHistoryCommand(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/history/kanban" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"project \"other\" not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode([]models.Run{
			{ID: 2, Timestamp: now.Add(-time.Hour), Stats: models.RunStats{Total: 4, Passed: 3, Failed: 1, Duration: 7415.2}, Source: "ci-upload", ExitCode: 1},
			{ID: 1, Timestamp: now.Add(-48 * time.Hour), Stats: models.RunStats{Total: 4, Passed: 4, Duration: 5000}, Source: "dashboard-run"},
		})
	}))
	defer srv.Close()

	out, err := run(t, "history", "kanban", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "kanban: 2 runs")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "✗")
	assert.Contains(t, lines[1], "7.4s")
	assert.Contains(t, lines[1], "1 hour ago")
	assert.Contains(t, lines[2], "✓")
	assert.Contains(t, lines[2], "2 days ago")

	out, err = run(t, "history", "kanban", "--server", srv.URL, "--limit", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	_, err = run(t, "history", "other", "--server", srv.URL)
	assert.ErrorContains(t, err, "not found")
}

func TestPrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, "kanban", nil, time.Now())
	assert.Equal(t, "No runs recorded for kanban\n", buf.String())
}
