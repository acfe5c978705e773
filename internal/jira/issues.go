package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/p-blackswan/test-dashboard/internal/report"
)

// Issue is the subset of a created issue the dashboard reads back.
type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Project references a Jira project by key.
type Project struct {
	Key string `json:"key"`
}

// IssueType references an issue type by name.
type IssueType struct {
	Name string `json:"name"`
}

// Priority references a priority by name.
type Priority struct {
	Name string `json:"name"`
}

// IssueFields are the fields set on creation.
type IssueFields struct {
	Project     Project   `json:"project"`
	Summary     string    `json:"summary"`
	Description *Doc      `json:"description,omitempty"`
	IssueType   IssueType `json:"issuetype"`
	Priority    *Priority `json:"priority,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
}

// CreateIssueRequest is the body of POST /rest/api/3/issue.
type CreateIssueRequest struct {
	Fields IssueFields `json:"fields"`
}

// Doc is an Atlassian Document Format node.
type Doc struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Text    string `json:"text,omitempty"`
	Content []Doc  `json:"content,omitempty"`
}

// TextDoc converts plain text into an ADF document with one paragraph per non-empty line.
func TextDoc(text string) *Doc {
	doc := &Doc{Type: "doc", Version: 1, Content: []Doc{}}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.Content = append(doc.Content, Doc{
			Type:    "paragraph",
			Content: []Doc{{Type: "text", Text: line}},
		})
	}
	return doc
}

// CreateIssue creates a new issue.
func (c *Client) CreateIssue(ctx context.Context, req *CreateIssueRequest) (*Issue, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var issue Issue
	if err := decodeResponse(resp, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Name implements report.Tracker.
func (c *Client) Name() string { return "jira" }

// CreateCard files a report card as a Bug in the configured project. The card
// id is the issue key.
func (c *Client) CreateCard(ctx context.Context, card report.Card) (*report.CardRef, error) {
	req := &CreateIssueRequest{Fields: IssueFields{
		Project:     Project{Key: c.projectKey},
		Summary:     card.Title,
		Description: TextDoc(card.Description),
		IssueType:   IssueType{Name: "Bug"},
		Priority:    &Priority{Name: "High"},
		Labels:      []string{"manual-test", labelFor(card.ProjectID)},
	}}

	issue, err := c.CreateIssue(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("issue", issue.Key).Str("project", card.ProjectID).Msg("issue created")
	return &report.CardRef{ID: issue.Key, URL: c.baseURL + "/browse/" + issue.Key}, nil
}

// labelFor makes a Jira-safe label; labels cannot contain spaces.
func labelFor(projectID string) string {
	return "project-" + strings.ReplaceAll(projectID, " ", "-")
}
