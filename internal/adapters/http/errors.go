package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/pkg/apperr"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, upstream_error, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errGatewayTimeout returns a 504 error.
func errGatewayTimeout(c *fiber.Ctx, msg string) error {
	return newError(c, 504, "timeout", msg)
}

// respondError maps a usecase error to an API error response. Internal
// details are logged, never returned to the client.
func respondError(c *fiber.Ctx, err error) error {
	log := LoggerFromCtx(c.UserContext())

	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := ae.HTTPStatus()
		if status >= 500 {
			log.Error("request failed", "path", c.Path(), "kind", ae.Code(), "error", err)
		}
		return newError(c, status, ae.Code(), ae.Message)
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "resource not found")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", "path", c.Path(), "error", err)
		return errGatewayTimeout(c, "request timed out")
	}

	log.Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, "internal error")
}
