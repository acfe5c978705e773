package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/test-dashboard/internal/checklist"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/report"
)

func createTestSession(t *testing.T, env *testEnv) models.SessionDetail {
	t.Helper()
	resp := env.do(t, "POST", "/api/manual/sessions", `{"projectId":"kanban","createdBy":"qa"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.SessionDetail](t, resp)
}

func TestChecklists(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/manual/checklists", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]checklist.Summary](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, checklist.Summary{
		ProjectID: "kanban", Name: "Kanban", Filename: "kanban.md", ItemCount: 3, CategoryCount: 2,
	}, list[0])

	resp = env.do(t, "GET", "/api/manual/checklists/kanban", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[checklist.Document](t, resp)
	assert.Equal(t, []string{"Auth", "Board"}, doc.Categories)
	require.Len(t, doc.Items, 3)
	assert.Equal(t, "Auth > Edge Cases", doc.Items[1].Category)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/manual/checklists/unknown", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/manual/checklists/bad.id", "").StatusCode)
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	sess := createTestSession(t, env)
	assert.Regexp(t, `^session-[0-9a-f]{16}$`, sess.ID)
	assert.Equal(t, models.SessionInProgress, sess.Status)
	assert.Equal(t, 3, sess.Total)
	require.Len(t, sess.Items, 3)
	assert.Equal(t, "qa", *sess.CreatedBy)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing project", `{}`, http.StatusBadRequest},
		{"invalid project", `{"projectId":"a b"}`, http.StatusBadRequest},
		{"no checklist", `{"projectId":"docs"}`, http.StatusNotFound},
		{"bad json", `{"projectId":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/manual/sessions", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			body := decode[ProblemDetail](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestGetAndListSessions(t *testing.T) {
	env := newTestEnv(t)
	sess := createTestSession(t, env)

	resp := env.do(t, "GET", "/api/manual/sessions/"+sess.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.SessionDetail](t, resp)
	assert.Equal(t, sess.ID, got.ID)
	assert.Len(t, got.Items, 3)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/manual/sessions/session-missing", "").StatusCode)

	resp = env.do(t, "GET", "/api/manual/sessions?projectId=kanban&status=in_progress&limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.Session](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, sess.ID, list[0].ID)

	resp = env.do(t, "GET", "/api/manual/sessions?status=completed", "")
	assert.Empty(t, decode[[]models.Session](t, resp))

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/manual/sessions?status=bogus", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/manual/sessions?projectId=a%20b", "").StatusCode)
}

func TestUpdateSession(t *testing.T) {
	env := newTestEnv(t)
	sess := createTestSession(t, env)
	path := "/api/manual/sessions/" + sess.ID

	assert.Equal(t, http.StatusBadRequest, env.do(t, "PATCH", path, `{}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PATCH", path, `{"status":"done"}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, "PATCH", "/api/manual/sessions/session-missing", `{"notes":"x"}`).StatusCode)

	resp := env.do(t, "PATCH", path, `{"status":"completed","notes":"all good"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Session](t, resp)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, "all good", *updated.Notes)

	// Completed is terminal.
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PATCH", path, `{"status":"in_progress"}`).StatusCode)
}

func TestItemLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sess := createTestSession(t, env)
	first := sess.Items[0]
	itemPath := fmt.Sprintf("/api/manual/items/%d", first.ID)

	// Failed requires a reason.
	resp := env.do(t, "PATCH", itemPath, `{"status":"failed"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem := decode[ProblemDetail](t, resp)
	assert.Equal(t, "Error description required for failed items", problem.Detail)
	assert.Equal(t, problem.Detail, problem.Error)

	resp = env.do(t, "PATCH", itemPath, `{"status":"failed","errorDescription":"500 on submit"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item := decode[models.Item](t, resp)
	assert.Equal(t, models.ItemFailed, item.Status)
	require.NotNil(t, item.ErrorDescription)
	assert.Equal(t, "500 on submit", *item.ErrorDescription)
	assert.NotNil(t, item.TestedAt)

	resp = env.do(t, "PATCH", itemPath, `{"status":"passed","errorDescription":"ignored"}`)
	item = decode[models.Item](t, resp)
	assert.Equal(t, models.ItemPassed, item.Status)
	assert.Nil(t, item.ErrorDescription)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "PATCH", "/api/manual/items/abc", `{"status":"passed"}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, "PATCH", "/api/manual/items/999999", `{"status":"passed"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PATCH", itemPath, `{"status":"maybe"}`).StatusCode)

	got := decode[models.SessionDetail](t, env.do(t, "GET", "/api/manual/sessions/"+sess.ID, ""))
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, 3, got.Total)
}

func TestCustomItemsAndDelete(t *testing.T) {
	env := newTestEnv(t)
	sess := createTestSession(t, env)
	itemsPath := "/api/manual/sessions/" + sess.ID + "/items"

	resp := env.do(t, "POST", itemsPath, `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Title is required", decode[ProblemDetail](t, resp).Detail)
	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/manual/sessions/session-missing/items", `{"title":"x"}`).StatusCode)

	resp = env.do(t, "POST", itemsPath, `{"title":"Export CSV"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	custom := decode[models.Item](t, resp)
	assert.True(t, custom.IsCustom)
	assert.Equal(t, "Custom", custom.Category)
	assert.Equal(t, 3, custom.Index)

	got := decode[models.SessionDetail](t, env.do(t, "GET", "/api/manual/sessions/"+sess.ID, ""))
	assert.Equal(t, 4, got.Total)

	resp = env.do(t, "DELETE", fmt.Sprintf("/api/manual/items/%d", custom.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"deleted": true}, decode[map[string]bool](t, resp))

	checklistItem := fmt.Sprintf("/api/manual/items/%d", sess.Items[1].ID)
	for i := 0; i < 2; i++ {
		resp = env.do(t, "DELETE", checklistItem, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]bool{"skipped": true}, decode[map[string]bool](t, resp))
	}

	got = decode[models.SessionDetail](t, env.do(t, "GET", "/api/manual/sessions/"+sess.ID, ""))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Skipped)

	assert.Equal(t, http.StatusNotFound, env.do(t, "DELETE", fmt.Sprintf("/api/manual/items/%d", custom.ID), "").StatusCode)
}

func TestGenerateReport(t *testing.T) {
	env := newTestEnv(t)
	sess := createTestSession(t, env)
	reportPath := "/api/manual/sessions/" + sess.ID + "/report"

	resp := env.do(t, "POST", reportPath, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[report.Result](t, resp)
	assert.Equal(t, "No failed items", empty.Message)
	assert.Empty(t, empty.Cards)

	for _, it := range sess.Items[:2] {
		body := fmt.Sprintf(`{"status":"failed","errorDescription":"broken %d"}`, it.Index)
		require.Equal(t, http.StatusOK, env.do(t, "PATCH", fmt.Sprintf("/api/manual/items/%d", it.ID), body).StatusCode)
	}

	resp = env.do(t, "POST", reportPath, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[report.Result](t, resp)
	assert.Equal(t, "Created 2 bug cards", res.Message)
	assert.Equal(t, 2, res.CardsCreated)
	require.Len(t, res.Cards, 2)
	assert.Equal(t, "Auth", res.Cards[0].Category)
	assert.Equal(t, "Auth > Edge Cases", res.Cards[1].Category)
	assert.Equal(t, 1, res.Cards[0].FailCount)
	assert.Equal(t, "1", res.Cards[0].CardID)
	assert.Equal(t, "https://kanban.example/card/1", res.Cards[0].CardURL)
	require.Len(t, env.tracker.cards, 2)
	assert.Equal(t, "BUG: Auth - 1 test failure", env.tracker.cards[0].Title)

	got := decode[models.SessionDetail](t, env.do(t, "GET", "/api/manual/sessions/"+sess.ID, ""))
	require.NotNil(t, got.Items[0].CardID)
	assert.Equal(t, "1", *got.Items[0].CardID)

	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/manual/sessions/session-missing/report", "").StatusCode)
}
