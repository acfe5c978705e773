package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/test-dashboard/internal/results"
)

// UploadResults handles POST /api/upload/{projectId}.
func (h *Handlers) UploadResults(c *fiber.Ctx) error {
	var req results.Upload
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	run, err := h.results.Record(c.UserContext(), c.Params("projectId"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Results uploaded", "run": run})
}

// ListProjects handles GET /api/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.results.Projects(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(projects)
}

// ResultsSummary handles GET /api/results.
func (h *Handlers) ResultsSummary(c *fiber.Ctx) error {
	summary, err := h.results.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// ProjectResults handles GET /api/results/{projectId}.
func (h *Handlers) ProjectResults(c *fiber.Ctx) error {
	runs, err := h.results.ProjectRuns(c.UserContext(), c.Params("projectId"))
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

// History handles GET /api/history/{projectId}.
func (h *Handlers) History(c *fiber.Ctx) error {
	runs, err := h.results.History(c.UserContext(), c.Params("projectId"))
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

// Poll handles GET /api/poll?since=.
func (h *Handlers) Poll(c *fiber.Ctx) error {
	res, err := h.results.Poll(c.UserContext(), c.Query("since"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
