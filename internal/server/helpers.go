package server

import (
	"errors"

	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit, offset := service.ClampPage(c.QueryInt("limit", defaultLimit), c.QueryInt("offset", 0))
	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// statusForError maps an error code to the HTTP status it is reported with.
func statusForError(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation, models.CodeNothingToPost:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthenticated, models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeTransport, models.CodeRemoteRejected:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with its mapped status.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusForError(err), err)
}

// currentUser returns the identity stored by AuthRequired.
// On failure it writes a 401 and returns errResponseWritten.
func currentUser(c *fiber.Ctx) (*models.Identity, error) {
	id, ok := c.Locals("identity").(*models.Identity)
	if !ok || id == nil || id.UserID == "" {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthenticatedError())
		return nil, errResponseWritten
	}
	return id, nil
}
