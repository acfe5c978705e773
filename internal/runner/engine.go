package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/test-dashboard/internal/config"
	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/metrics"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/notify"
	"github.com/p-blackswan/test-dashboard/internal/playwright"
	"github.com/p-blackswan/test-dashboard/internal/results"
)

// Events published over the live channel.
const (
	EventStarted   = "tests:started"
	EventCompleted = "tests:completed"
	EventError     = "tests:error"
)

// Projects resolves registry projects.
type Projects interface {
	Lookup(id string) (config.Project, bool)
	All() []config.Project
}

// Recorder stores a finished run.
type Recorder interface {
	Record(ctx context.Context, projectID string, in results.Upload) (*models.Run, error)
}

// Publisher receives fire-and-forget change notifications.
type Publisher interface {
	Publish(event string, data any)
}

// Config holds configuration for the engine.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Engine runs queued jobs on a fixed pool of workers. At most one job per
// project is pending or running at a time.
type Engine struct {
	cfg      Config
	queue    chan *Job
	executor Executor
	projects Projects
	recorder Recorder
	events   Publisher
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	jobs   sync.Map // id → *Job
	mu     sync.Mutex
	active map[string]string // projectID → jobID

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.events = p } }
func WithNotifier(n notify.Notifier) Option { return func(e *Engine) { e.notifier = n } }
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// NewEngine creates a new engine. Call Start before submitting.
func NewEngine(cfg Config, executor Executor, projects Projects, recorder Recorder, logger zerolog.Logger, opts ...Option) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	e := &Engine{
		cfg:      cfg,
		queue:    make(chan *Job, cfg.QueueSize),
		executor: executor,
		projects: projects,
		recorder: recorder,
		active:   make(map[string]string),
		logger:   logger.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches worker goroutines.
func (e *Engine) Start(ctx context.Context) {
	if e.running.Swap(true) {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
	e.logger.Info().Int("workers", e.cfg.Workers).Msg("runner started")
}

// Stop cancels running jobs and waits for the workers to exit.
func (e *Engine) Stop() {
	if !e.running.Swap(false) {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info().Msg("runner stopped")
}

// Submit queues a run of one project.
func (e *Engine) Submit(projectID, grep string) (*Job, error) {
	if !models.ValidProjectID(projectID) {
		return nil, dberrors.NewValidation("projectId", "Invalid project ID")
	}
	project, ok := e.projects.Lookup(projectID)
	if !ok {
		return nil, dberrors.NewNotFound("project", projectID)
	}
	if !project.Runnable() {
		return nil, dberrors.NewValidation("projectId", "Project has no test command")
	}
	grep, err := SanitizeGrep(grep)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Grep:      grep,
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	if existing, busy := e.active[project.ID]; busy {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: tests already running for %s (job %s)", dberrors.ErrConflict, project.ID, existing)
	}
	select {
	case e.queue <- job:
		e.active[project.ID] = job.ID
		e.jobs.Store(job.ID, job)
	default:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: job queue is full", dberrors.ErrUnavailable)
	}
	e.mu.Unlock()

	e.logger.Info().Str("job_id", job.ID).Str("project", project.ID).Str("grep", grep).Msg("job enqueued")
	return job.Snapshot(), nil
}

// SubmitAll queues every runnable project. Projects that already have a job
// are skipped.
func (e *Engine) SubmitAll(grep string) ([]*Job, error) {
	if _, err := SanitizeGrep(grep); err != nil {
		return nil, err
	}
	jobs := []*Job{}
	for _, p := range e.projects.All() {
		if !p.Runnable() {
			continue
		}
		job, err := e.Submit(p.ID, grep)
		if err != nil {
			if errors.Is(err, dberrors.ErrConflict) {
				e.logger.Debug().Str("project", p.ID).Msg("skipping busy project")
				continue
			}
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Get retrieves a job by ID as a snapshot.
func (e *Engine) Get(id string) (*Job, bool) {
	v, ok := e.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Job).Snapshot(), true
}

func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	log := e.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.queue:
			e.execute(ctx, job, log)
		}
	}
}

func (e *Engine) execute(ctx context.Context, job *Job, log zerolog.Logger) {
	defer e.release(job)

	now := time.Now().UTC()
	job.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = &now
	job.mu.Unlock()

	log = log.With().Str("job_id", job.ID).Str("project", job.ProjectID).Logger()
	log.Info().Msg("running tests")
	e.publish(EventStarted, map[string]any{"projectId": job.ProjectID, "jobId": job.ID, "grep": job.Grep})

	run, err := e.runTests(ctx, job)
	completed := time.Now().UTC()

	job.mu.Lock()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobCompleted
		job.RunID = run.ID
		job.Stats = &run.Stats
	}
	job.mu.Unlock()

	if err != nil {
		e.metrics.RecordJob("error")
		log.Error().Err(err).Msg("test job failed")
		e.publish(EventError, map[string]any{"projectId": job.ProjectID, "jobId": job.ID, "error": err.Error()})
		e.notifyError(ctx, job.ProjectID, err)
		return
	}

	outcome := "passed"
	if run.Stats.Failed > 0 {
		outcome = "failed"
	}
	e.metrics.RecordJob(outcome)
	log.Info().
		Int("passed", run.Stats.Passed).
		Int("failed", run.Stats.Failed).
		Dur("elapsed", completed.Sub(now)).
		Msg("test job completed")
	e.publish(EventCompleted, map[string]any{"projectId": job.ProjectID, "jobId": job.ID, "run": run})
}

func (e *Engine) runTests(ctx context.Context, job *Job) (*models.Run, error) {
	project, ok := e.projects.Lookup(job.ProjectID)
	if !ok {
		return nil, dberrors.NewNotFound("project", job.ProjectID)
	}

	argv := append([]string(nil), project.TestCommand...)
	argv = append(argv, "--reporter=json")
	if job.Grep != "" {
		argv = append(argv, "--grep", job.Grep)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.executor.Execute(runCtx, project.TestDir, argv)
	if err != nil {
		return nil, err
	}
	report, err := playwright.Parse(out)
	if err != nil {
		return nil, err
	}
	in := report.NewRun(job.ProjectID, results.SourceDashboard)
	return e.recorder.Record(ctx, job.ProjectID, results.Upload{
		Stats:  &in.Stats,
		Suites: in.Suites,
		Errors: in.Errors,
		Source: in.Source,
	})
}

func (e *Engine) release(job *Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[job.ProjectID] == job.ID {
		delete(e.active, job.ProjectID)
	}
}

func (e *Engine) publish(event string, data any) {
	if e.events != nil {
		e.events.Publish(event, data)
	}
}

func (e *Engine) notifyError(ctx context.Context, projectID string, err error) {
	if e.notifier == nil {
		return
	}
	msg := notify.Message{
		Level:   notify.LevelCritical,
		Title:   "Test run could not complete",
		Project: projectID,
		Error:   err,
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if nerr := e.notifier.Notify(nctx, msg); nerr != nil {
			e.logger.Warn().Err(nerr).Msg("failed to send runner notification")
		}
	}()
}
