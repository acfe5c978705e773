// Package api is the dashboard's REST surface: manual testing sessions,
// automated run history, background runs and admin endpoints.
package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/test-dashboard/internal/checklist"
	"github.com/p-blackswan/test-dashboard/internal/health"
	"github.com/p-blackswan/test-dashboard/internal/metrics"
	"github.com/p-blackswan/test-dashboard/internal/report"
	"github.com/p-blackswan/test-dashboard/internal/requestid"
	"github.com/p-blackswan/test-dashboard/internal/results"
	"github.com/p-blackswan/test-dashboard/internal/runner"
	"github.com/p-blackswan/test-dashboard/internal/session"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr   string
	CORSOrigins  string
	RateLimit    RateLimitConfig
	MigrationKey string // empty disables POST /api/migrate
	StaticDir    string // empty disables the frontend
	BodyLimit    int
}

// Deps are the services behind the handlers. Runner, Health and Metrics may be nil.
type Deps struct {
	Store      *store.Store
	Checklists *checklist.Catalog
	Sessions   *session.Service
	Reports    *report.Generator
	Results    *results.Service
	Runner     *runner.Engine
	Health     *health.Checker
	Metrics    *metrics.Metrics
}

// Server is the dashboard API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
	cancel   context.CancelFunc
}

// NewServer creates and configures a new API server.
func NewServer(cfg ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	bodyLimit := cfg.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 10 * 1024 * 1024
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:      app,
		handlers: NewHandlers(deps, logger),
		logger:   logger,
		config:   cfg,
		cancel:   cancel,
	}

	s.setupMiddleware(ctx, cfg, deps.Metrics)
	s.setupRoutes(cfg)

	return s
}

func isProbe(path string) bool {
	return path == "/health" || path == "/api/health"
}

func (s *Server) setupMiddleware(ctx context.Context, cfg ServerConfig, m *metrics.Metrics) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID: honour a caller-supplied id, otherwise mint one.
	s.app.Use(func(c *fiber.Ctx) error {
		reqID := c.Get(requestid.Header)
		var rctx context.Context
		if reqID == "" || len(reqID) > 128 {
			rctx, reqID = requestid.New(c.UserContext())
		} else {
			rctx = requestid.WithRequestID(c.UserContext(), reqID)
		}
		c.Set(requestid.Header, reqID)
		c.Locals("request_id", reqID)
		c.SetUserContext(rctx)
		return c.Next()
	})

	// Access log and request metrics.
	s.app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		m.ObserveHTTP(c.Method(), c.Route().Path, status, elapsed)

		path := c.Path()
		if isProbe(path) {
			return err
		}
		s.logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Str("ip", c.IP()).
			Str("request_id", requestid.FromContext(c.UserContext())).
			Msg("api request")
		return err
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID, X-Migration-Key",
			AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		}))
	}

	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(ctx, cfg.RateLimit))
	}
}

func (s *Server) setupRoutes(cfg ServerConfig) {
	h := s.handlers

	s.app.Get("/health", h.Health)

	api := s.app.Group("/api")
	api.Get("/health", h.Health)
	api.Post("/migrate", requireMigrationKey(cfg.MigrationKey), h.Migrate)

	// Automated results
	api.Get("/projects", h.ListProjects)
	api.Post("/upload/:projectId", h.UploadResults)
	api.Get("/results", h.ResultsSummary)
	api.Get("/results/:projectId", h.ProjectResults)
	api.Get("/history/:projectId", h.History)
	api.Get("/poll", h.Poll)

	// Background runs
	api.Post("/run-all", h.RunAll)
	api.Post("/run/:projectId", h.RunProject)
	api.Get("/run/:jobId", h.GetJob)

	// Manual testing
	manual := api.Group("/manual")
	manual.Get("/checklists", h.ListChecklists)
	manual.Get("/checklists/:projectId", h.GetChecklist)
	manual.Get("/sessions", h.ListSessions)
	manual.Post("/sessions", h.CreateSession)
	manual.Get("/sessions/:sessionId", h.GetSession)
	manual.Patch("/sessions/:sessionId", h.UpdateSession)
	manual.Post("/sessions/:sessionId/items", h.AddItem)
	manual.Post("/sessions/:sessionId/report", h.GenerateReport)
	manual.Patch("/items/:itemId", h.UpdateItem)
	manual.Delete("/items/:itemId", h.DeleteItem)

	api.All("/*", func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	if cfg.StaticDir != "" {
		s.app.Static("/", cfg.StaticDir)
		s.app.Get("/*", h.spaFallback(cfg.StaticDir))
	}
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":3030"
	}

	s.logger.Info().Str("addr", addr).Msg("API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("API server shutting down")
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, errType, title, detail := problemOf(err)

		ev := logger.Warn()
		if status >= fiber.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).
			Int("status", status).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Str("request_id", requestid.FromContext(c.UserContext())).
			Msg("request failed")

		return problemResponse(c, status, errType, title, detail)
	}
}
