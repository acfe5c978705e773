package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/report"
)

type noopAuth struct{}

func (n *noopAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer test-token")
	return nil
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewClient(server.URL, "QA", &noopAuth{}, zerolog.Nop())
	client.SetHTTPClient(server.Client())
	return client, server
}

func TestClient_CreateIssue(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/issue", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Issue{ID: "10001", Key: "QA-124"})
	})
	defer server.Close()

	req := &CreateIssueRequest{}
	req.Fields.Project = Project{Key: "QA"}
	req.Fields.Summary = "New bug"
	req.Fields.IssueType = IssueType{Name: "Bug"}

	issue, err := client.CreateIssue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "QA-124", issue.Key)
}

func TestClient_CreateCard(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body CreateIssueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "QA", body.Fields.Project.Key)
		assert.Equal(t, "BUG: Auth - 2 test failures", body.Fields.Summary)
		assert.Equal(t, "Bug", body.Fields.IssueType.Name)
		assert.Equal(t, []string{"manual-test", "project-exe-pm"}, body.Fields.Labels)
		require.NotNil(t, body.Fields.Description)
		assert.Len(t, body.Fields.Description.Content, 2)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"10002","key":"QA-7"}`))
	})
	defer server.Close()

	ref, err := client.CreateCard(context.Background(), report.Card{
		Title:       "BUG: Auth - 2 test failures",
		Description: "## Manual Test Failures\n\n**Project:** exe-pm\n",
		ProjectID:   "exe-pm",
	})
	require.NoError(t, err)
	assert.Equal(t, "QA-7", ref.ID)
	assert.Equal(t, server.URL+"/browse/QA-7", ref.URL)
}

func TestClient_CreateCard_Error(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages":["issuetype is required"]}`))
	})
	defer server.Close()

	_, err := client.CreateCard(context.Background(), report.Card{Title: "x"})
	require.Error(t, err)
	var up *dberrors.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusBadRequest, up.StatusCode)
	assert.Contains(t, err.Error(), "400")
	assert.False(t, dberrors.IsRetryable(err))
}

func TestBasicAuth_Apply(t *testing.T) {
	auth := &BasicAuth{Email: "user@example.com", APIToken: "token123"}
	req, _ := http.NewRequest("GET", "http://example.com", nil)
	err := auth.Apply(req)
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlckBleGFtcGxlLmNvbTp0b2tlbjEyMw==", req.Header.Get("Authorization"))
}

func TestTextDoc(t *testing.T) {
	doc := TextDoc("line one\n\nline two\n")
	assert.Equal(t, "doc", doc.Type)
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Content, 2)
	assert.Equal(t, "line two", doc.Content[1].Content[0].Text)
}

func TestClient_BaseURL(t *testing.T) {
	client := NewClient("https://test.atlassian.net/", "QA", &noopAuth{}, zerolog.Nop())
	assert.Equal(t, "https://test.atlassian.net", client.BaseURL())
}
