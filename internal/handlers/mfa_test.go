package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/authgate/backend/internal/services"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("failed generating totp code: %v", err)
	}
	return code
}

func setupTwoFactor(t *testing.T, env *testEnv, access string) (string, []string) {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodGet, "/api/auth/2fa/setup/", nil, authHeaders(access))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)

	secret, _ := body["secret"].(string)
	if len(secret) != 32 {
		t.Fatalf("expected 32 character secret, got %q", secret)
	}
	if qr, _ := body["qr_code"].(string); !strings.HasPrefix(qr, "data:image/png;base64,") {
		t.Fatalf("expected PNG data URI, got %.40q", qr)
	}
	raw, _ := body["backup_codes"].([]any)
	if len(raw) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(raw))
	}
	codes := make([]string, len(raw))
	for i, c := range raw {
		codes[i] = c.(string)
	}
	return secret, codes
}

func enableTwoFactor(t *testing.T, env *testEnv, access string) (string, []string) {
	t.Helper()
	secret, codes := setupTwoFactor(t, env, access)
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify/", map[string]any{
		"token": currentCode(t, secret),
	}, authHeaders(access))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	user := body["user"].(map[string]any)
	if user["is_2fa_enabled"] != true {
		t.Fatalf("expected 2FA enabled, got %+v", user)
	}
	return secret, codes
}

func TestTwoFactorSetupRequiresAuth(t *testing.T) {
	env := setupTestEnv(t, services.AuthOptions{})
	resp := performJSONRequest(t, env.app, http.MethodGet, "/api/auth/2fa/setup/", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestTwoFactorVerifyRejectsBadCode(t *testing.T) {
	env := setupTestEnv(t, services.AuthOptions{})
	access, _ := registerAlice(t, env)
	secret, _ := setupTwoFactor(t, env, access)

	wrong := "000000"
	if currentCode(t, secret) == wrong {
		wrong = "111111"
	}
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify/", map[string]any{"token": wrong}, authHeaders(access))
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, decodeJSONMap(t, resp), "Invalid 2FA code")
}

func TestLoginWithTwoFactor(t *testing.T) {
	env := setupTestEnv(t, services.AuthOptions{})
	access, _ := registerAlice(t, env)
	secret, codes := enableTwoFactor(t, env, access)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login/", map[string]any{
		"email": "alice@x.com", "password": "Str0ng!Pass",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	if body["requires_2fa"] != true {
		t.Fatalf("expected requires_2fa, got %+v", body)
	}
	if _, ok := body["tokens"]; ok {
		t.Fatalf("expected no tokens before the second factor, got %+v", body)
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify-login/", map[string]any{
		"email": "alice@x.com", "token": currentCode(t, secret),
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	body = decodeJSONMap(t, resp)
	if _, ok := body["tokens"].(map[string]any); !ok {
		t.Fatalf("expected tokens, got %+v", body)
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify-login/", map[string]any{
		"email": "alice@x.com", "token": strings.ToLower(codes[0]), "is_backup_code": true,
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify-login/", map[string]any{
		"email": "alice@x.com", "token": codes[0], "is_backup_code": true,
	}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, decodeJSONMap(t, resp), "Invalid backup code")
}

func TestLoginWithTwoFactorCompatibilityMode(t *testing.T) {
	env := setupTestEnv(t, services.AuthOptions{IssueTokensBefore2FA: true})
	access, _ := registerAlice(t, env)
	enableTwoFactor(t, env, access)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login/", map[string]any{
		"email": "alice@x.com", "password": "Str0ng!Pass",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	if body["requires_2fa"] != true || body["message"] != "2FA verification required" {
		t.Fatalf("unexpected body %+v", body)
	}
	if _, ok := body["tokens"].(map[string]any); !ok {
		t.Fatalf("expected tokens in compatibility mode, got %+v", body)
	}
}

func TestVerifyLoginErrors(t *testing.T) {
	env := setupTestEnv(t, services.AuthOptions{})
	registerAlice(t, env)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify-login/", map[string]any{"email": "alice@x.com"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, decodeJSONMap(t, resp), "Token and email are required")

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify-login/", map[string]any{"email": "ghost@x.com", "token": "123456"}, nil)
	assertStatus(t, resp, http.StatusNotFound)
	assertError(t, decodeJSONMap(t, resp), "User not found")

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/verify-login/", map[string]any{"email": "alice@x.com", "token": "123456"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, decodeJSONMap(t, resp), "2FA is not enabled for this user")
}

func TestTwoFactorDisable(t *testing.T) {
	env := setupTestEnv(t, services.AuthOptions{})
	access, _ := registerAlice(t, env)
	enableTwoFactor(t, env, access)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/disable/", map[string]any{"password": "wrong"}, authHeaders(access))
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/2fa/disable/", map[string]any{"password": "Str0ng!Pass"}, authHeaders(access))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	if user := body["user"].(map[string]any); user["is_2fa_enabled"] != false {
		t.Fatalf("expected 2FA disabled, got %+v", user)
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login/", map[string]any{
		"email": "alice@x.com", "password": "Str0ng!Pass",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	if body := decodeJSONMap(t, resp); body["requires_2fa"] != nil {
		t.Fatalf("did not expect requires_2fa after disable, got %+v", body)
	}
}
