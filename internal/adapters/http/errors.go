package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/logging"
)

// Error kinds returned in APIError.Error.
const (
	KindInvalidArgument  = "invalid_argument"
	KindStoreUnavailable = "store_unavailable"
	KindNotFound         = "not_found"
	KindRateLimited      = "rate_limited"
	KindInternal         = "internal_error"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`   // stable kind, see Kind* constants
	Details   string `json:"details"` // human-readable, never driver text
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, kind string, details string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Error:     kind,
		Details:   details,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, KindInvalidArgument, msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, KindNotFound, msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, KindInternal, msg)
}

// respondError maps a service error to its status and kind.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return newError(c, fiber.StatusInternalServerError, KindStoreUnavailable, "spatial store unavailable")
	default:
		logging.FromContext(c.UserContext()).Error("unhandled error", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}

// ErrorHandler renders errors that escape handlers and middleware (unknown
// routes, timeouts, panics) in the APIError shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return errNotFound(c, "no route for "+c.Method()+" "+c.Path())
		case fiber.StatusTooManyRequests:
			return newError(c, fe.Code, KindRateLimited, "too many requests, please try again later")
		case fiber.StatusRequestTimeout:
			return newError(c, fiber.StatusInternalServerError, KindStoreUnavailable, "query timed out")
		}
		if fe.Code < 500 {
			return newError(c, fe.Code, KindInvalidArgument, fe.Message)
		}
	}
	return respondError(c, err)
}
