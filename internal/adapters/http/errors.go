package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, invalid_segment, not_found, internal_error, ...
	Message   string `json:"message"` // Human-readable message
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string, details any) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg, nil)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg, nil)
}

// errUnavailable returns a 503 error for optional backends that are not wired.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg, nil)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg, nil)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	var perr *domain.ParseError
	var empty *domain.EmptyInputError
	switch {
	case errors.As(err, &verr):
		return newError(c, fiber.StatusUnprocessableEntity, "invalid_segment", verr.Error(), verr)
	case errors.As(err, &perr):
		return newError(c, fiber.StatusBadRequest, "parse_error", perr.Error(), perr)
	case errors.As(err, &empty):
		return newError(c, fiber.StatusUnprocessableEntity, "empty_input", empty.Error(), empty)
	case errors.Is(err, domain.ErrPlotNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrPlotNameRequired):
		return errBadRequest(c, err.Error())
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, err.Error())
}
