// Package results records automated test runs and serves the results views.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/metrics"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/notify"
	"github.com/p-blackswan/test-dashboard/internal/requestid"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

// EventUploaded is published after every recorded run.
const EventUploaded = "results:uploaded"

// Sources recorded on runs.
const (
	SourceUpload    = "ci-upload"
	SourceDashboard = "dashboard-run"
)

// Publisher receives fire-and-forget change notifications.
type Publisher interface {
	Publish(event string, data any)
}

// Limits bounds what is kept and returned.
type Limits struct {
	Retain      int // runs kept per project
	ProjectRuns int // runs returned by ProjectRuns
	History     int // runs returned by History
}

// DefaultLimits keeps 50 runs, shows 20 with payloads and 50 in history.
func DefaultLimits() Limits {
	return Limits{Retain: 50, ProjectRuns: 20, History: 50}
}

// Service records runs and answers results queries.
type Service struct {
	store    *store.Store
	limits   Limits
	events   Publisher
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a results service. events, notifier and m may be nil.
func NewService(st *store.Store, limits Limits, events Publisher, notifier notify.Notifier, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		limits:   limits,
		events:   events,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "results").Logger(),
		now:      time.Now,
	}
}

// Upload is the body of POST /api/upload/{projectId}.
type Upload struct {
	Stats  *models.RunStats `json:"stats"`
	Suites json.RawMessage  `json:"suites"`
	Errors json.RawMessage  `json:"errors"`
	Source string           `json:"source"`
}

// Record validates and stores one run, then trims the project's history to
// the retention window.
func (s *Service) Record(ctx context.Context, projectID string, in Upload) (*models.Run, error) {
	if !models.ValidProjectID(projectID) {
		return nil, dberrors.NewValidation("projectId", "Invalid project ID")
	}
	if in.Stats == nil {
		return nil, dberrors.NewValidation("stats", "Invalid stats object")
	}
	st := *in.Stats
	if st.Total < 0 || st.Passed < 0 || st.Failed < 0 || st.Skipped < 0 || st.Duration < 0 {
		return nil, dberrors.NewValidation("stats", "Stats counts must not be negative")
	}
	source := in.Source
	if source == "" {
		source = SourceUpload
	}

	run, err := s.store.InsertRun(ctx, models.NewRun{
		ProjectID: projectID,
		Stats:     st,
		Suites:    in.Suites,
		Errors:    in.Errors,
		Source:    source,
	}, s.limits.Retain, s.now())
	if err != nil {
		s.metrics.RecordError("results", "persistence")
		return nil, dberrors.Persistence("record run", err)
	}

	s.metrics.RecordRun(source, st.Failed > 0)
	log := requestid.Logger(ctx, s.logger)
	log.Info().
		Str("project", projectID).
		Str("source", source).
		Int("passed", st.Passed).
		Int("total", st.Total).
		Msg("results uploaded")

	if s.events != nil {
		s.events.Publish(EventUploaded, map[string]any{"projectId": projectID, "run": run})
	}
	if st.Failed > 0 {
		s.notifyFailure(ctx, projectID, run)
	}
	return run, nil
}

func (s *Service) notifyFailure(ctx context.Context, projectID string, run *models.Run) {
	if s.notifier == nil {
		return
	}
	msg := notify.Message{
		Level:   notify.LevelWarning,
		Title:   "Test run failed",
		Text:    fmt.Sprintf("%d of %d tests failed (source: %s)", run.Stats.Failed, run.Stats.Total, run.Source),
		Project: projectID,
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(nctx, msg); err != nil {
			s.logger.Warn().Err(err).Msg("failed to send run notification")
		}
	}()
}

// Summary returns the latest state of every known project.
func (s *Service) Summary(ctx context.Context) (map[string]models.ProjectSummary, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, dberrors.Persistence("list projects", err)
	}
	latest, err := s.store.LatestRuns(ctx)
	if err != nil {
		return nil, dberrors.Persistence("latest runs", err)
	}

	out := make(map[string]models.ProjectSummary, len(projects))
	for _, p := range projects {
		var last *models.Run
		if r, ok := latest[p.ID]; ok {
			last = &r
		}
		out[p.ID] = Summarize(p.Name, last)
	}
	for id, r := range latest {
		if _, ok := out[id]; !ok {
			r := r
			out[id] = Summarize(id, &r)
		}
	}
	return out, nil
}

// Summarize builds a project summary from its latest run.
func Summarize(name string, last *models.Run) models.ProjectSummary {
	sum := models.ProjectSummary{Name: name, LastRun: last, Status: "unknown"}
	if last == nil {
		return sum
	}
	sum.Passed = last.Stats.Passed
	sum.Failed = last.Stats.Failed
	sum.Skipped = last.Stats.Skipped
	sum.Total = last.Stats.Total
	switch {
	case sum.Failed > 0:
		sum.Status = "failed"
	case sum.Passed > 0:
		sum.Status = "passed"
	}
	return sum
}

// ProjectRuns is the response of GET /api/results/{projectId}.
type ProjectRuns struct {
	Runs    []models.Run `json:"runs"`
	LastRun *models.Run  `json:"lastRun"`
}

// ProjectRuns returns the most recent runs of a project with payloads.
func (s *Service) ProjectRuns(ctx context.Context, projectID string) (*ProjectRuns, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	runs, err := s.store.ListRuns(ctx, projectID, s.limits.ProjectRuns, true)
	if err != nil {
		return nil, dberrors.Persistence("list runs", err)
	}
	out := &ProjectRuns{Runs: runs}
	if len(runs) > 0 {
		out.LastRun = &runs[0]
	}
	return out, nil
}

// History returns the run history of a project without payloads.
func (s *Service) History(ctx context.Context, projectID string) ([]models.Run, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	runs, err := s.store.ListRuns(ctx, projectID, s.limits.History, false)
	if err != nil {
		return nil, dberrors.Persistence("list history", err)
	}
	return runs, nil
}

func (s *Service) requireProject(ctx context.Context, projectID string) error {
	if !models.ValidProjectID(projectID) {
		return dberrors.NewValidation("projectId", "Invalid project ID")
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return dberrors.Persistence("get project", err)
	}
	if p == nil {
		return dberrors.NewNotFound("project", projectID)
	}
	return nil
}

// PollResult is the response of GET /api/poll.
type PollResult struct {
	Latest     *time.Time `json:"latest"`
	HasUpdates bool       `json:"hasUpdates"`
}

// Poll reports the newest run time and whether it is later than since.
// An empty or unparsable since never reports updates.
func (s *Service) Poll(ctx context.Context, since string) (PollResult, error) {
	latest, err := s.store.LatestTimestamp(ctx)
	if err != nil {
		return PollResult{}, dberrors.Persistence("latest timestamp", err)
	}
	res := PollResult{Latest: latest}
	if latest == nil || since == "" {
		return res, nil
	}
	t, err := time.Parse(time.RFC3339Nano, since)
	if err != nil {
		return res, nil
	}
	res.HasUpdates = latest.After(t)
	return res, nil
}

// Projects lists the known projects ordered by name.
func (s *Service) Projects(ctx context.Context) ([]models.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, dberrors.Persistence("list projects", err)
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}
