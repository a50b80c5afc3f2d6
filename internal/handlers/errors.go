package handlers

import (
	"errors"

	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation:         fiber.StatusBadRequest,
	services.KindInvalidCredentials: fiber.StatusBadRequest,
	services.KindUnauthorized:       fiber.StatusUnauthorized,
	services.KindNotFound:           fiber.StatusNotFound,
	services.KindConflict:           fiber.StatusConflict,
	services.KindTokenNotFound:      fiber.StatusBadRequest,
	services.KindTokenExpired:       fiber.StatusBadRequest,
	services.KindTokenAlreadyUsed:   fiber.StatusBadRequest,
	services.KindInvalidCode:        fiber.StatusBadRequest,
	services.KindInvalidBackupCode:  fiber.StatusBadRequest,
	services.KindInvalidToken:       fiber.StatusUnauthorized,
	services.KindUpstream:           fiber.StatusInternalServerError,
}

// respondError renders a service error. Internal failures are logged and
// replaced with a generic message.
func respondError(c *fiber.Ctx, action string, err error) error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindInternal, Err: err}
	}

	status, ok := kindStatus[svcErr.Kind]
	if !ok || svcErr.Kind == services.KindInternal {
		logUnexpected(c, action, err)
		return utils.Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
	if svcErr.Kind == services.KindUpstream {
		logUnexpected(c, action, err)
	}

	return utils.ErrorWithDetails(c, status, svcErr.Message, svcErr.Fields)
}

func logUnexpected(c *fiber.Ctx, action string, err error) {
	details := map[string]interface{}{"path": c.Path()}
	if userID := logger.GetUserIDFromContext(c); userID != nil {
		logger.ErrorWithUser(*userID, action, err, details)
		return
	}
	logger.Error(action, err, details)
}

func invalidBody(c *fiber.Ctx) error {
	return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
}
