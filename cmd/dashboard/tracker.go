package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/test-dashboard/internal/config"
	ghclient "github.com/p-blackswan/test-dashboard/internal/github"
	jiraclient "github.com/p-blackswan/test-dashboard/internal/jira"
	"github.com/p-blackswan/test-dashboard/internal/kanban"
	"github.com/p-blackswan/test-dashboard/internal/report"
)

// newTracker builds the bug tracker selected by TRACKER.
func newTracker(cfg *config.Config, logger zerolog.Logger) (report.Tracker, error) {
	switch cfg.Tracker {
	case config.TrackerKanban:
		return kanban.NewClient(cfg.KanbanAPIURL, cfg.KanbanCardURL, logger), nil
	case config.TrackerJira:
		auth := &jiraclient.BasicAuth{Email: cfg.JiraAPIEmail, APIToken: cfg.JiraAPIToken}
		return jiraclient.NewClient(cfg.JiraBaseURL, cfg.JiraProjectKey, auth, logger), nil
	case config.TrackerGitHub:
		owner, repo, err := cfg.GitHubRepo()
		if err != nil {
			return nil, err
		}
		client, err := ghclient.NewClient(cfg.GitHubToken, owner, repo, cfg.GitHubBaseURL, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.TrackerNone:
		logger.Warn().Msg("no bug tracker configured, reports will not create cards")
		return report.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown tracker %q", cfg.Tracker)
	}
}
