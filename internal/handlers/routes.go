package handlers

import (
	"github.com/authgate/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the authentication API on router, normally the
// /api/auth group. Paths match with or without a trailing slash.
func RegisterRoutes(router fiber.Router, h *AuthHandler, mw *middleware.AuthMiddleware) {
	router.Post("/register", h.Register)
	router.Post("/login", h.Login)
	router.Post("/logout", mw.RequireAuth, h.Logout)
	router.Post("/refresh", h.Refresh)

	router.Get("/profile", mw.RequireAuth, h.GetProfile)
	router.Put("/profile", mw.RequireAuth, h.UpdateProfile)
	router.Patch("/profile", mw.RequireAuth, h.UpdateProfile)

	router.Get("/2fa/setup", mw.RequireAuth, h.TwoFactorSetup)
	router.Post("/2fa/verify", mw.RequireAuth, h.TwoFactorVerify)
	router.Post("/2fa/disable", mw.RequireAuth, h.TwoFactorDisable)
	router.Post("/2fa/verify-login", h.TwoFactorLogin)

	router.Post("/password-reset", h.PasswordReset)
	router.Post("/password-reset/confirm", h.PasswordResetConfirm)
	router.Post("/change-password", mw.RequireAuth, h.ChangePassword)
}
