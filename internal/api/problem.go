package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
)

// ProblemDetail is an RFC 7807 error body. Error repeats Detail for clients
// that only read the "error" field.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Error    string `json:"error,omitempty"`
}

const internalDetail = "An internal error occurred"

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
		Error:    detail,
	})
}

// statusOf maps a handler error to its response status.
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return dberrors.HTTPStatus(err)
}

// problemOf builds the problem body for err. Internal failures get a safe detail.
// Validation messages are written to stand alone, so the field name is left out.
func problemOf(err error) (status int, errType, title, detail string) {
	status = statusOf(err)
	detail = err.Error()

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		errType = "http_error"
		title = fe.Message
	case dberrors.IsValidation(err):
		errType, title = "validation_error", "Bad Request"
		var ve *dberrors.ValidationError
		if errors.As(err, &ve) {
			detail = ve.Message
		}
	case dberrors.IsNotFound(err):
		errType, title = "not_found", "Not Found"
	case errors.Is(err, dberrors.ErrConflict):
		errType, title = "conflict", "Conflict"
	case errors.Is(err, dberrors.ErrForbidden):
		errType, title = "forbidden", "Forbidden"
	case errors.Is(err, dberrors.ErrRateLimit):
		errType, title = "rate_limit_exceeded", "Too Many Requests"
	case errors.Is(err, dberrors.ErrUnavailable):
		errType, title = "unavailable", "Service Unavailable"
	case status == fiber.StatusGatewayTimeout:
		errType, title, detail = "timeout", "Gateway Timeout", "The operation timed out"
	default:
		errType, title, detail = "internal_error", "Internal Server Error", internalDetail
	}
	return status, errType, title, detail
}

// invalidBody reports an unparsable JSON request body.
func invalidBody(err error) error {
	return dberrors.NewValidation("body", "Invalid request body: "+err.Error())
}
