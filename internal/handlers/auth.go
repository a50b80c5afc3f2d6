package handlers

import (
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth *services.AuthService
	// PublicURL is the frontend origin used in reset links. When empty the
	// request's own scheme and host are used.
	PublicURL string
}

func NewAuthHandler(auth *services.AuthService, publicURL string) *AuthHandler {
	return &AuthHandler{Auth: auth, PublicURL: publicURL}
}

type authResponse struct {
	Message     string              `json:"message"`
	User        *models.User        `json:"user"`
	Tokens      *services.TokenPair `json:"tokens,omitempty"`
	Requires2FA bool                `json:"requires_2fa,omitempty"`
}

type refreshRequest struct {
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (r refreshRequest) token() string {
	if r.Refresh != "" {
		return r.Refresh
	}
	return r.RefreshToken
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := h.Auth.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, "register_failed", err)
	}

	return utils.JSON(c, fiber.StatusCreated, authResponse{
		Message: "User registered successfully",
		User:    result.User,
		Tokens:  result.Tokens,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := h.Auth.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, "login_failed", err)
	}

	resp := authResponse{
		Message: "Login successful",
		User:    result.User,
		Tokens:  result.Tokens,
	}
	if result.RequiresTwoFactor {
		resp.Message = "2FA verification required"
		resp.Requires2FA = true
	}
	return utils.JSON(c, fiber.StatusOK, resp)
}

// Logout always succeeds; revocation of the supplied refresh token is
// best effort.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	_ = c.BodyParser(&req)

	h.Auth.Logout(c.UserContext(), middleware.GetCurrentUser(c), req.token())
	return utils.Message(c, fiber.StatusOK, "Logout successful")
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	access, err := h.Auth.Refresh(c.UserContext(), req.token())
	if err != nil {
		return respondError(c, "token_refresh_failed", err)
	}
	return utils.JSON(c, fiber.StatusOK, fiber.Map{"access": access})
}

func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	return utils.JSON(c, fiber.StatusOK, middleware.GetCurrentUser(c))
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req services.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := h.Auth.UpdateProfile(c.UserContext(), middleware.GetCurrentUser(c), req)
	if err != nil {
		return respondError(c, "profile_update_failed", err)
	}
	return utils.JSON(c, fiber.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req services.ChangePasswordInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.Auth.ChangePassword(c.UserContext(), middleware.GetCurrentUser(c), req); err != nil {
		return respondError(c, "password_change_failed", err)
	}
	return utils.Message(c, fiber.StatusOK, "Password changed successfully")
}
