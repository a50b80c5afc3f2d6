package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/database"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

func setupMiddlewareTest(t *testing.T) (*services.AuthService, *services.AuthResult) {
	t.Helper()
	logger.SetOutput(io.Discard)

	db, err := database.Connect(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "mw.db")})
	if err != nil {
		t.Fatalf("failed opening sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	users := store.NewUserStore(db)
	box, _ := utils.NewSecretBox("middleware-test-secret")
	auth := services.NewAuthService(services.AuthDeps{
		Users: users,
		Issuer: services.NewTokenIssuer(config.JWTConfig{
			Secret:     "middleware-test-secret",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		}, store.NewTokenBlacklist(db)),
		TOTP:      services.NewTOTPEngine("AuthGate", 1),
		Backup:    services.NewBackupCodeManager(users, 10),
		Ledger:    services.NewResetLedger(store.NewResetTokenStore(db), time.Hour),
		SecretBox: box,
	})

	result, err := auth.Register(context.Background(), services.RegisterInput{
		Email:           "alice@x.com",
		Username:        "alice",
		Password:        "Str0ng!Pass",
		PasswordConfirm: "Str0ng!Pass",
		FirstName:       "Alice",
		LastName:        "Liddell",
	})
	if err != nil {
		t.Fatalf("failed registering user: %v", err)
	}
	return auth, result
}

func newProtectedApp(auth *services.AuthService) *fiber.App {
	app := fiber.New()
	mw := NewAuthMiddleware(auth)
	app.Get("/me", mw.RequireAuth, func(c *fiber.Ctx) error {
		user := GetCurrentUser(c)
		return c.JSON(fiber.Map{"email": user.Email, "user_id": c.Locals(userIDKey)})
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	auth, registered := setupMiddlewareTest(t)
	app := newProtectedApp(auth)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + registered.Tokens.Refresh, http.StatusUnauthorized},
		{"access token", "Bearer " + registered.Tokens.Access, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.StatusCode)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed decoding body: %v", err)
			}
			if tc.status == http.StatusOK {
				if body["email"] != "alice@x.com" {
					t.Fatalf("expected alice, got %v", body["email"])
				}
				if body["user_id"] != registered.User.ID.String() {
					t.Fatalf("expected user id in locals, got %v", body["user_id"])
				}
			} else if _, ok := body["error"]; !ok {
				t.Fatalf("expected error body, got %v", body)
			}
		})
	}
}

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	app := fiber.New()
	app.Use(RequestTimeout(50 * time.Millisecond))
	app.Get("/", func(c *fiber.Ctx) error {
		deadline, ok := c.UserContext().Deadline()
		if !ok {
			return c.SendStatus(http.StatusInternalServerError)
		}
		if time.Until(deadline) > 50*time.Millisecond {
			return c.SendStatus(http.StatusInternalServerError)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestRequestLoggerRedactsBody(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	app := fiber.New()
	app.Use(RequestLogger())
	app.Post("/login", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"alice@x.com","password":"Str0ng!Pass"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}

	out := buf.String()
	if !strings.Contains(out, "http_request") {
		t.Fatalf("expected access log entry, got %q", out)
	}
	if strings.Contains(out, "Str0ng!Pass") {
		t.Fatal("password leaked into the access log")
	}
}

func TestSecurityLoggerRecordsUnauthorized(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	app := fiber.New()
	app.Use(SecurityLogger())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusUnauthorized)
	})

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(buf.String(), "access_denied_unauthenticated") {
		t.Fatalf("expected security log entry, got %q", buf.String())
	}
}
