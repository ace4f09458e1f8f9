package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/apperrors"
	"github.com/trackroom/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func getRequestID(c *fiber.Ctx) string {
	return c.Get("X-Request-ID")
}

// serviceError maps the closed error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an unexpected failure and surfaces as a 500.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case apperrors.IsNotFound(err):
		return utils.Error(c, fiber.StatusNotFound, "not found")
	case apperrors.IsUnauthorized(err):
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	case apperrors.IsInvalidTransition(err):
		return utils.Error(c, fiber.StatusConflict, "invalid transition")
	case errors.Is(err, apperrors.ErrConflict):
		return utils.Error(c, fiber.StatusConflict, "conflict")
	case apperrors.IsTransient(err):
		return utils.Error(c, fiber.StatusServiceUnavailable, "temporary failure, retry")
	default:
		return utils.Error(c, fiber.StatusInternalServerError, fallback)
	}
}
