package handlers

import (
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type twoFactorCodeRequest struct {
	Token        string `json:"token"`
	IsBackupCode bool   `json:"is_backup_code"`
}

type twoFactorDisableRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) TwoFactorSetup(c *fiber.Ctx) error {
	setup, err := h.Auth.SetupTwoFactor(c.UserContext(), middleware.GetCurrentUser(c))
	if err != nil {
		return respondError(c, "2fa_setup_failed", err)
	}
	return utils.JSON(c, fiber.StatusOK, setup)
}

func (h *AuthHandler) TwoFactorVerify(c *fiber.Ctx) error {
	var req twoFactorCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := h.Auth.EnableTwoFactor(c.UserContext(), middleware.GetCurrentUser(c), req.Token, req.IsBackupCode)
	if err != nil {
		return respondError(c, "2fa_enable_failed", err)
	}
	return utils.JSON(c, fiber.StatusOK, authResponse{
		Message: "2FA enabled successfully",
		User:    user,
	})
}

func (h *AuthHandler) TwoFactorDisable(c *fiber.Ctx) error {
	var req twoFactorDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := h.Auth.DisableTwoFactor(c.UserContext(), middleware.GetCurrentUser(c), req.Password)
	if err != nil {
		return respondError(c, "2fa_disable_failed", err)
	}
	return utils.JSON(c, fiber.StatusOK, authResponse{
		Message: "2FA disabled successfully",
		User:    user,
	})
}

// TwoFactorLogin completes a login that returned requires_2fa. It needs no
// session: the email identifies the account and the code proves the factor.
func (h *AuthHandler) TwoFactorLogin(c *fiber.Ctx) error {
	var req services.VerifyLoginInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := h.Auth.VerifyLogin(c.UserContext(), req)
	if err != nil {
		return respondError(c, "2fa_login_failed", err)
	}
	return utils.JSON(c, fiber.StatusOK, authResponse{
		Message: "2FA verification successful",
		User:    result.User,
		Tokens:  result.Tokens,
	})
}
