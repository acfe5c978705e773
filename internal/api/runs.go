package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
)

// RunRequest is the optional body of the run endpoints.
type RunRequest struct {
	Grep string `json:"grep"`
}

func (h *Handlers) parseRunRequest(c *fiber.Ctx) (RunRequest, error) {
	var req RunRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	if err := c.BodyParser(&req); err != nil {
		return req, invalidBody(err)
	}
	return req, nil
}

func (h *Handlers) requireRunner() error {
	if h.runner == nil {
		return fmt.Errorf("%w: test runner is disabled", dberrors.ErrUnavailable)
	}
	return nil
}

// RunProject handles POST /api/run/{projectId}.
func (h *Handlers) RunProject(c *fiber.Ctx) error {
	if err := h.requireRunner(); err != nil {
		return err
	}
	req, err := h.parseRunRequest(c)
	if err != nil {
		return err
	}

	job, err := h.runner.Submit(c.Params("projectId"), req.Grep)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Tests started",
		"job":     job,
	})
}

// RunAll handles POST /api/run-all.
func (h *Handlers) RunAll(c *fiber.Ctx) error {
	if err := h.requireRunner(); err != nil {
		return err
	}
	req, err := h.parseRunRequest(c)
	if err != nil {
		return err
	}

	jobs, err := h.runner.SubmitAll(req.Grep)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": fmt.Sprintf("Started %d test runs", len(jobs)),
		"jobs":    jobs,
	})
}

// GetJob handles GET /api/run/{jobId}.
func (h *Handlers) GetJob(c *fiber.Ctx) error {
	if err := h.requireRunner(); err != nil {
		return err
	}
	id := c.Params("jobId")
	job, ok := h.runner.Get(id)
	if !ok {
		return dberrors.NewNotFound("job", id)
	}
	return c.JSON(job)
}
