package handlers

import (
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) resetBaseURL(c *fiber.Ctx) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	return c.BaseURL()
}

func (h *AuthHandler) PasswordReset(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.Auth.RequestPasswordReset(c.UserContext(), req.Email, h.resetBaseURL(c)); err != nil {
		return respondError(c, "password_reset_request_failed", err)
	}
	return utils.Message(c, fiber.StatusOK, "Password reset email sent successfully")
}

func (h *AuthHandler) PasswordResetConfirm(c *fiber.Ctx) error {
	var req services.ResetConfirmInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.Auth.ConfirmPasswordReset(c.UserContext(), req); err != nil {
		return respondError(c, "password_reset_confirm_failed", err)
	}
	return utils.Message(c, fiber.StatusOK, "Password reset successful")
}
