// Package github files dashboard bug reports as GitHub issues.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gh "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/report"
)

// DefaultLabels are applied to every issue the dashboard opens.
var DefaultLabels = []string{"bug", "manual-test"}

// Client opens issues in one repository.
type Client struct {
	gh     *gh.Client
	owner  string
	repo   string
	labels []string
	logger zerolog.Logger
}

// NewClient authenticates with a token. baseURL is only set for GitHub Enterprise.
func NewClient(token, owner, repo, baseURL string, logger zerolog.Logger) (*Client, error) {
	client := gh.NewClient(&http.Client{}).WithAuthToken(token)
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
	}
	return NewClientWithGH(client, owner, repo, logger), nil
}

// NewClientWithGH wraps an existing go-github client.
func NewClientWithGH(client *gh.Client, owner, repo string, logger zerolog.Logger) *Client {
	return &Client{
		gh:     client,
		owner:  owner,
		repo:   repo,
		labels: DefaultLabels,
		logger: logger.With().Str("component", "github").Str("repo", owner+"/"+repo).Logger(),
	}
}

// Name implements report.Tracker.
func (c *Client) Name() string { return "github" }

// CreateCard opens an issue. The card id is the issue number.
func (c *Client) CreateCard(ctx context.Context, card report.Card) (*report.CardRef, error) {
	labels := append([]string(nil), c.labels...)
	if card.ProjectID != "" {
		labels = append(labels, "project:"+card.ProjectID)
	}

	issue, resp, err := c.gh.Issues.Create(ctx, c.owner, c.repo, &gh.IssueRequest{
		Title:  gh.String(card.Title),
		Body:   gh.String(card.Description),
		Labels: &labels,
	})
	if err != nil {
		return nil, upstreamErr(resp, err)
	}

	id := strconv.Itoa(issue.GetNumber())
	c.logger.Info().Str("issue", id).Str("project", card.ProjectID).Msg("issue created")
	return &report.CardRef{ID: id, URL: issue.GetHTMLURL()}, nil
}

func upstreamErr(resp *gh.Response, err error) error {
	var rle *gh.RateLimitError
	var arle *gh.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &arle) {
		return &dberrors.UpstreamError{Service: "github", StatusCode: http.StatusTooManyRequests, Message: "rate limited", Err: err}
	}
	if resp != nil && resp.Response != nil {
		return &dberrors.UpstreamError{Service: "github", StatusCode: resp.StatusCode, Message: "create issue failed", Err: err}
	}
	return fmt.Errorf("github create issue: %w", err)
}
