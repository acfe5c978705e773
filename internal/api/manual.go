package api

import (
	"github.com/gofiber/fiber/v2"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/session"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

// CreateSessionRequest is the body of POST /api/manual/sessions.
type CreateSessionRequest struct {
	ProjectID string  `json:"projectId"`
	CreatedBy *string `json:"createdBy"`
	Notes     *string `json:"notes"`
}

// UpdateSessionRequest is the body of PATCH /api/manual/sessions/{sessionId}.
type UpdateSessionRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// AddItemRequest is the body of POST /api/manual/sessions/{sessionId}/items.
type AddItemRequest struct {
	Category string `json:"category"`
	Title    string `json:"title"`
}

// UpdateItemRequest is the body of PATCH /api/manual/items/{itemId}.
type UpdateItemRequest struct {
	Status           string  `json:"status"`
	ErrorDescription *string `json:"errorDescription"`
}

// ListChecklists handles GET /api/manual/checklists.
func (h *Handlers) ListChecklists(c *fiber.Ctx) error {
	list, err := h.checklists.List()
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// GetChecklist handles GET /api/manual/checklists/{projectId}.
func (h *Handlers) GetChecklist(c *fiber.Ctx) error {
	projectID := c.Params("projectId")
	if !models.ValidProjectID(projectID) {
		return dberrors.NewValidation("projectId", "Invalid project ID")
	}
	doc, err := h.checklists.Get(projectID)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// ListSessions handles GET /api/manual/sessions.
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	f := models.SessionFilter{
		ProjectID: c.Query("projectId"),
		Status:    models.SessionStatus(c.Query("status")),
		Limit:     c.QueryInt("limit", store.DefaultSessionLimit),
	}
	if f.Status != "" && !f.Status.Valid() {
		return dberrors.NewValidation("status", "Invalid status")
	}
	if f.Limit <= 0 {
		f.Limit = store.DefaultSessionLimit
	}

	sessions, err := h.sessions.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(sessions)
}

// CreateSession handles POST /api/manual/sessions.
func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	detail, err := h.sessions.CreateSession(c.UserContext(), session.CreateInput{
		ProjectID: req.ProjectID,
		CreatedBy: req.CreatedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		return err
	}
	h.metrics.RecordSession("created")
	return c.Status(fiber.StatusCreated).JSON(detail)
}

// GetSession handles GET /api/manual/sessions/{sessionId}.
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	detail, err := h.sessions.Get(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

// UpdateSession handles PATCH /api/manual/sessions/{sessionId}.
func (h *Handlers) UpdateSession(c *fiber.Ctx) error {
	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	sess, err := h.sessions.SetSessionStatus(c.UserContext(), c.Params("sessionId"), req.Status, req.Notes)
	if err != nil {
		return err
	}
	if req.Status != nil && *req.Status != "" {
		h.metrics.RecordSession(*req.Status)
	}
	return c.JSON(sess)
}

// AddItem handles POST /api/manual/sessions/{sessionId}/items.
func (h *Handlers) AddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	item, err := h.sessions.AddCustomItem(c.UserContext(), c.Params("sessionId"), req.Category, req.Title)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// UpdateItem handles PATCH /api/manual/items/{itemId}.
func (h *Handlers) UpdateItem(c *fiber.Ctx) error {
	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}
	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	item, err := h.sessions.SetItemStatus(c.UserContext(), itemID, req.Status, req.ErrorDescription)
	if err != nil {
		return err
	}
	h.metrics.RecordItemUpdate(string(item.Status))
	return c.JSON(item)
}

// DeleteItem handles DELETE /api/manual/items/{itemId}. Custom items are
// removed; checklist items are marked skipped.
func (h *Handlers) DeleteItem(c *fiber.Ctx) error {
	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}

	res, err := h.sessions.RemoveItem(c.UserContext(), itemID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// GenerateReport handles POST /api/manual/sessions/{sessionId}/report.
func (h *Handlers) GenerateReport(c *fiber.Ctx) error {
	res, err := h.reports.Generate(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
