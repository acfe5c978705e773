package api

import (
	"crypto/subtle"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/test-dashboard/internal/checklist"
	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/health"
	"github.com/p-blackswan/test-dashboard/internal/metrics"
	"github.com/p-blackswan/test-dashboard/internal/report"
	"github.com/p-blackswan/test-dashboard/internal/results"
	"github.com/p-blackswan/test-dashboard/internal/runner"
	"github.com/p-blackswan/test-dashboard/internal/session"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

const serviceName = "test-dashboard"

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store      *store.Store
	checklists *checklist.Catalog
	sessions   *session.Service
	reports    *report.Generator
	results    *results.Service
	runner     *runner.Engine
	health     *health.Checker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:      deps.Store,
		checklists: deps.Checklists,
		sessions:   deps.Sessions,
		reports:    deps.Reports,
		results:    deps.Results,
		runner:     deps.Runner,
		health:     deps.Health,
		metrics:    deps.Metrics,
		logger:     logger.With().Str("component", "handlers").Logger(),
	}
}

// Health handles GET /health and GET /api/health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
	}
	if h.health == nil {
		return c.JSON(resp)
	}

	rep := h.health.Check(c.UserContext())
	resp["checks"] = rep.Checks
	resp["uptime"] = rep.Uptime
	if !rep.Ready() {
		resp["status"] = "unhealthy"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// Migrate handles POST /api/migrate. Migrations are idempotent.
func (h *Handlers) Migrate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.store.Migrate(ctx); err != nil {
		return dberrors.Persistence("migrate", err)
	}
	version, err := h.store.SchemaVersion(ctx)
	if err != nil {
		return dberrors.Persistence("schema version", err)
	}

	h.logger.Info().Str("schema_version", version).Msg("migrations applied")
	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "Migration completed successfully",
		"tables":        store.Tables,
		"schemaVersion": version,
	})
}

// requireMigrationKey guards admin routes with a static shared secret.
// An empty key rejects every request.
func requireMigrationKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Migration-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return problemResponse(c, fiber.StatusForbidden,
				"forbidden", "Forbidden", "Unauthorized")
		}
		return c.Next()
	}
}

// spaFallback serves index.html for GET paths no static file matched.
func (h *Handlers) spaFallback(dir string) fiber.Handler {
	index := filepath.Join(dir, "index.html")
	return func(c *fiber.Ctx) error {
		return c.SendFile(index)
	}
}

func parseItemID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("itemId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, dberrors.NewValidation("itemId", "Invalid item ID")
	}
	return id, nil
}
