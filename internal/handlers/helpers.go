package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// respondError writes a domain error with its status and message. Anything
// else is logged under action and reported as a generic 500.
func respondError(c *fiber.Ctx, err error, action string) error {
	var domainErr *services.Error
	if errors.As(err, &domainErr) {
		return utils.Error(c, statusForKind(domainErr.Kind), domainErr.Message)
	}

	details := map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	}
	if user := middleware.GetCurrentUser(c); user != nil {
		logger.ErrorWithUser(user.ID.String(), action, err, details)
	} else {
		logger.Error(action, err, details)
	}
	return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindUnauthenticated:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		id, err := parseUUID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
