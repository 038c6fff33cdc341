package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/usecases"
	"github.com/samirrijal/routemap/internal/pkg/geospatial"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, format_error, not_found, internal_error, ...
	Message   string `json:"message"` // Human-readable message
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return writeError(c, APIError{Status: status, Code: code, Message: message})
}

func writeError(c *fiber.Ctx, e APIError) error {
	e.RequestID, _ = c.Locals("requestid").(string)
	return c.Status(e.Status).JSON(e)
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps service errors onto API errors.
func errFromDomain(c *fiber.Ctx, err error) error {
	var fe *geospatial.FormatError
	switch {
	case errors.As(err, &fe):
		return writeError(c, APIError{Status: fiber.StatusBadRequest, Code: "format_error", Message: fe.Error(), Field: fe.Field})
	case errors.Is(err, domain.ErrSurfaceNotFound), errors.Is(err, domain.ErrPayloadNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrUnknownChannel),
		errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, usecases.ErrNonFinite):
		return errBadRequest(c, err.Error())
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, "internal error")
}
