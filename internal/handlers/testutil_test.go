package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/database"
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type captureNotifier struct {
	mu   sync.Mutex
	urls []string
	fail error
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, _ *models.User, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.urls = append(n.urls, resetURL)
	return nil
}

func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.urls) == 0 {
		t.Fatal("expected a reset email")
	}
	parsed, err := url.Parse(n.urls[len(n.urls)-1])
	if err != nil {
		t.Fatalf("failed parsing reset url: %v", err)
	}
	return parsed.Query().Get("token")
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	notifier *captureNotifier
}

func setupTestEnv(t *testing.T, opts services.AuthOptions) *testEnv {
	t.Helper()
	logger.SetOutput(io.Discard)

	db, err := database.Connect(config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "handlers.db"),
	})
	if err != nil {
		t.Fatalf("failed opening sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	box, err := utils.NewSecretBox("test-secret")
	if err != nil {
		t.Fatalf("failed creating secret box: %v", err)
	}

	users := store.NewUserStore(db)
	notifier := &captureNotifier{}
	authService := services.NewAuthService(services.AuthDeps{
		Users: users,
		Issuer: services.NewTokenIssuer(config.JWTConfig{
			Secret:     "test-secret",
			Issuer:     "authgate",
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		}, store.NewTokenBlacklist(db)),
		TOTP:      services.NewTOTPEngine("AuthGate", 1),
		Backup:    services.NewBackupCodeManager(users, 10),
		Ledger:    services.NewResetLedger(store.NewResetTokenStore(db), 24*time.Hour),
		Notifier:  notifier,
		Policy:    services.DefaultPasswordPolicy(8),
		SecretBox: box,
		Options:   opts,
	})

	authHandler := NewAuthHandler(authService, "http://localhost:3000")
	authMiddleware := middleware.NewAuthMiddleware(authService)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(middleware.RequestTimeout(5 * time.Second))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	RegisterRoutes(app.Group("/api/auth"), authHandler, authMiddleware)

	return &testEnv{app: app, db: db, notifier: notifier}
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %+v", expected, body)
	}
}

func registerAlice(t *testing.T, env *testEnv) (access, refresh string) {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register/", map[string]any{
		"email":            "alice@x.com",
		"username":         "alice",
		"password":         "Str0ng!Pass",
		"password_confirm": "Str0ng!Pass",
		"first_name":       "Alice",
		"last_name":        "Liddell",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)
	body := decodeJSONMap(t, resp)
	tokens, ok := body["tokens"].(map[string]any)
	if !ok {
		t.Fatalf("expected tokens in %+v", body)
	}
	return tokens["access"].(string), tokens["refresh"].(string)
}
