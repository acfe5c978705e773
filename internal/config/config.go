package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Tracker kinds accepted by TRACKER.
const (
	TrackerKanban = "kanban"
	TrackerJira   = "jira"
	TrackerGitHub = "github"
	TrackerNone   = "none"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"` // ops listener: /ws, /metrics, /health, /ready

	// REST API
	APIListenAddr  string `envconfig:"API_LISTEN_ADDR" default:":3030"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS" default:"*"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	StaticDir      string `envconfig:"STATIC_DIR" default:"frontend/public"`
	MigrationKey   string `envconfig:"MIGRATION_KEY"` // empty disables POST /api/migrate

	// Storage
	DatabasePath     string `envconfig:"DATABASE_PATH" default:"dashboard.db"`
	RunRetention     int    `envconfig:"RUN_RETENTION" default:"50"`
	ProjectRunsLimit int    `envconfig:"PROJECT_RUNS_LIMIT" default:"20"`
	HistoryLimit     int    `envconfig:"HISTORY_LIMIT" default:"50"`

	// Checklists
	ChecklistsDir      string `envconfig:"CHECKLISTS_DIR" default:"data/checklists"`
	ProjectsFile       string `envconfig:"PROJECTS_FILE" default:"configs/projects.yaml"`
	ChecklistCacheSize int    `envconfig:"CHECKLIST_CACHE_SIZE" default:"64"`
	WatchChecklists    bool   `envconfig:"WATCH_CHECKLISTS" default:"true"`

	// Bug tracker
	Tracker       string        `envconfig:"TRACKER" default:"kanban"`
	ReportTimeout time.Duration `envconfig:"REPORT_TIMEOUT" default:"15s"`
	KanbanAPIURL  string        `envconfig:"KANBAN_API_URL" default:"https://kanban.exe.pm/api/board"`
	KanbanCardURL string        `envconfig:"KANBAN_CARD_URL" default:"https://kanban.exe.pm/card"`

	JiraBaseURL    string `envconfig:"JIRA_BASE_URL"`
	JiraAPIEmail   string `envconfig:"JIRA_API_EMAIL"`
	JiraAPIToken   string `envconfig:"JIRA_API_TOKEN"`
	JiraProjectKey string `envconfig:"JIRA_PROJECT_KEY" default:"QA"`

	GitHubToken      string `envconfig:"GITHUB_TOKEN"`
	GitHubRepository string `envconfig:"GITHUB_REPOSITORY"` // owner/name
	GitHubBaseURL    string `envconfig:"GITHUB_API_URL"`    // GitHub Enterprise only

	// Slack (optional)
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel  string `envconfig:"SLACK_CHANNEL"`

	// Background runner
	RunnerWorkers int           `envconfig:"RUNNER_WORKERS" default:"2"`
	RunnerTimeout time.Duration `envconfig:"RUNNER_TIMEOUT" default:"10m"`
}

// SlackEnabled returns true if a bot token and channel are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// JiraEnabled returns true if Jira base URL and credentials are configured.
func (c *Config) JiraEnabled() bool {
	return c.JiraBaseURL != "" && c.JiraAPIEmail != "" && c.JiraAPIToken != ""
}

// GitHubEnabled returns true if a token and target repository are configured.
func (c *Config) GitHubEnabled() bool {
	_, _, err := c.GitHubRepo()
	return c.GitHubToken != "" && err == nil
}

// GitHubRepo splits GITHUB_REPOSITORY into owner and name.
func (c *Config) GitHubRepo() (string, string, error) {
	owner, name, ok := strings.Cut(c.GitHubRepository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid GITHUB_REPOSITORY %q, expected owner/name", c.GitHubRepository)
	}
	return owner, name, nil
}

// CORSOriginList returns the configured origins joined for the CORS middleware.
func (c *Config) CORSOriginList() string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, ",")
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Tracker {
	case TrackerKanban, TrackerNone:
	case TrackerJira:
		if !c.JiraEnabled() {
			return fmt.Errorf("TRACKER=jira requires JIRA_BASE_URL, JIRA_API_EMAIL and JIRA_API_TOKEN")
		}
	case TrackerGitHub:
		if !c.GitHubEnabled() {
			return fmt.Errorf("TRACKER=github requires GITHUB_TOKEN and GITHUB_REPOSITORY")
		}
	default:
		return fmt.Errorf("unknown TRACKER %q", c.Tracker)
	}
	if c.RunRetention < 1 {
		return fmt.Errorf("RUN_RETENTION must be at least 1")
	}
	return nil
}

// Load reads configuration from environment variables, after loading any
// .env files given (".env" when none).
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotenv(envFiles...); err != nil {
		return nil, err
	}
	return LoadWithPrefix("")
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// loadDotenv never overrides variables already set in the environment.
func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
