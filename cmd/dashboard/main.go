package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/test-dashboard/internal/api"
	"github.com/p-blackswan/test-dashboard/internal/checklist"
	"github.com/p-blackswan/test-dashboard/internal/config"
	"github.com/p-blackswan/test-dashboard/internal/health"
	"github.com/p-blackswan/test-dashboard/internal/metrics"
	"github.com/p-blackswan/test-dashboard/internal/notify"
	"github.com/p-blackswan/test-dashboard/internal/report"
	"github.com/p-blackswan/test-dashboard/internal/results"
	"github.com/p-blackswan/test-dashboard/internal/retry"
	"github.com/p-blackswan/test-dashboard/internal/runner"
	"github.com/p-blackswan/test-dashboard/internal/session"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

// EventChecklistsChanged is published when a checklist file changes on disk.
const EventChecklistsChanged = "checklists:changed"

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("api_addr", cfg.APIListenAddr).
		Str("tracker", cfg.Tracker).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting test dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	registry, err := config.LoadRegistry(cfg.ProjectsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load project registry")
	}

	st, err := store.New(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	if err := st.UpsertProjects(ctx, registry.Models()); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed projects")
	}

	m := metrics.New()
	hub := notify.NewHub(m, logger)

	notifier := notify.NewMultiNotifier(notify.NewLogNotifier(logger))
	if cfg.SlackEnabled() {
		notifier = notify.NewMultiNotifier(
			notify.NewLogNotifier(logger),
			notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel, logger),
		)
		logger.Info().Str("channel", cfg.SlackChannel).Msg("Slack notifications enabled")
	} else {
		logger.Info().Msg("Slack not configured, notifications go to the log only")
	}

	tracker, err := newTracker(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init bug tracker")
	}

	catalog := checklist.NewCatalog(cfg.ChecklistsDir, registry, cfg.ChecklistCacheSize, logger)

	var wg sync.WaitGroup

	var watcher *checklist.Watcher
	if cfg.WatchChecklists {
		watcher, err = checklist.NewWatcher(catalog, func(ch checklist.Change) {
			hub.Publish(EventChecklistsChanged, ch)
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("checklist watcher disabled (non-fatal)")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				watcher.Run(ctx)
			}()
		}
	}

	sessions := session.NewService(st, catalog, hub, logger)
	reports := report.NewGenerator(st, tracker, logger,
		report.WithTimeout(cfg.ReportTimeout),
		report.WithRetry(retry.DefaultConfig()),
		report.WithPublisher(hub),
		report.WithNotifier(notifier),
		report.WithMetrics(m),
	)
	resultsSvc := results.NewService(st, results.Limits{
		Retain:      cfg.RunRetention,
		ProjectRuns: cfg.ProjectRunsLimit,
		History:     cfg.HistoryLimit,
	}, hub, notifier, m, logger)

	engine := runner.NewEngine(runner.Config{
		Workers:   cfg.RunnerWorkers,
		QueueSize: 64,
		Timeout:   cfg.RunnerTimeout,
	}, runner.CommandExecutor{}, registry, resultsSvc, logger,
		runner.WithPublisher(hub),
		runner.WithNotifier(notifier),
		runner.WithMetrics(m),
	)
	engine.Start(ctx)

	checker := health.NewChecker(logger)
	checker.Register("database", health.DatabaseCheck(st))
	checker.Register("checklists", health.DirCheck(cfg.ChecklistsDir))

	apiServer := api.NewServer(api.ServerConfig{
		ListenAddr:   cfg.APIListenAddr,
		CORSOrigins:  cfg.CORSOriginList(),
		RateLimit:    api.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		MigrationKey: cfg.MigrationKey,
		StaticDir:    cfg.StaticDir,
	}, api.Deps{
		Store:      st,
		Checklists: catalog,
		Sessions:   sessions,
		Reports:    reports,
		Results:    resultsSvc,
		Runner:     engine,
		Health:     checker,
		Metrics:    m,
	}, logger)

	// Ops listener: live events, metrics and probes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", health.LivenessHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/ws", hub)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("port", cfg.HTTPPort).Msg("ops server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ops server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown error")
	}

	engine.Stop()
	hub.Close()
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Warn().Err(err).Msg("checklist watcher close error")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("database close error")
	}

	logger.Info().Msg("test dashboard stopped")
}
