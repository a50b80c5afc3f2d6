package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("returns config with defaults when no env vars set", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DB.Driver != "postgres" {
			t.Errorf("expected DB.Driver 'postgres', got %s", cfg.DB.Driver)
		}
		if cfg.DB.Port != "5432" {
			t.Errorf("expected DB.Port '5432', got %s", cfg.DB.Port)
		}
		if cfg.Server.Port != "8000" {
			t.Errorf("expected Server.Port '8000', got %s", cfg.Server.Port)
		}
		if cfg.JWT.AccessTTL != 5*time.Minute {
			t.Errorf("expected JWT.AccessTTL 5m, got %v", cfg.JWT.AccessTTL)
		}
		if cfg.JWT.RefreshTTL != 24*time.Hour {
			t.Errorf("expected JWT.RefreshTTL 24h, got %v", cfg.JWT.RefreshTTL)
		}
		if cfg.Auth.ResetTokenTTL != 24*time.Hour {
			t.Errorf("expected Auth.ResetTokenTTL 24h, got %v", cfg.Auth.ResetTokenTTL)
		}
		if cfg.Auth.BackupCodeCount != 10 {
			t.Errorf("expected Auth.BackupCodeCount 10, got %d", cfg.Auth.BackupCodeCount)
		}
		if cfg.TOTP.Skew != 1 {
			t.Errorf("expected TOTP.Skew 1, got %d", cfg.TOTP.Skew)
		}
		if cfg.Auth.IssueTokensBefore2FA {
			t.Error("expected IssueTokensBefore2FA to default to false")
		}
		if cfg.Auth.RevokeSessionsOnPasswordChange {
			t.Error("expected RevokeSessionsOnPasswordChange to default to false")
		}
		if cfg.Server.RequestTimeout != 5*time.Second {
			t.Errorf("expected Server.RequestTimeout 5s, got %v", cfg.Server.RequestTimeout)
		}
	})

	t.Run("reads environment variables", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "SQLITE")
		t.Setenv("DB_PATH", "/tmp/auth.db")
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("JWT_SECRET", "my-secret")
		t.Setenv("JWT_ACCESS_TTL", "15m")
		t.Setenv("TOTP_SKEW", "0")
		t.Setenv("AUTH_ISSUE_TOKENS_BEFORE_2FA", "true")
		t.Setenv("AUTH_REVOKE_SESSIONS_ON_PASSWORD_CHANGE", "true")
		t.Setenv("PUBLIC_URL", "https://auth.example.com/")
		t.Setenv("SMTP_PORT", "2525")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.DB.Driver != "sqlite" {
			t.Errorf("expected DB.Driver 'sqlite', got %s", cfg.DB.Driver)
		}
		if cfg.DB.Path != "/tmp/auth.db" {
			t.Errorf("expected DB.Path '/tmp/auth.db', got %s", cfg.DB.Path)
		}
		if cfg.Server.Port != "9090" {
			t.Errorf("expected Server.Port '9090', got %s", cfg.Server.Port)
		}
		if cfg.JWT.Secret != "my-secret" {
			t.Errorf("expected JWT.Secret 'my-secret', got %s", cfg.JWT.Secret)
		}
		if cfg.JWT.AccessTTL != 15*time.Minute {
			t.Errorf("expected JWT.AccessTTL 15m, got %v", cfg.JWT.AccessTTL)
		}
		if cfg.TOTP.Skew != 0 {
			t.Errorf("expected TOTP.Skew 0, got %d", cfg.TOTP.Skew)
		}
		if !cfg.Auth.IssueTokensBefore2FA {
			t.Error("expected IssueTokensBefore2FA true")
		}
		if !cfg.Auth.RevokeSessionsOnPasswordChange {
			t.Error("expected RevokeSessionsOnPasswordChange true")
		}
		if cfg.Server.PublicURL != "https://auth.example.com" {
			t.Errorf("expected trailing slash trimmed, got %s", cfg.Server.PublicURL)
		}
		if cfg.SMTP.Port != 2525 {
			t.Errorf("expected SMTP.Port 2525, got %d", cfg.SMTP.Port)
		}
	})

	t.Run("TOTP encryption key falls back to JWT secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "jwt-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TOTP.EncryptionKey != "jwt-secret" {
			t.Errorf("expected encryption key fallback, got %q", cfg.TOTP.EncryptionKey)
		}
	})

	t.Run("reads config file with env override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "authgate.yaml")
		content := "server_port: \"7000\"\ntotp_issuer: FileIssuer\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed writing config file: %v", err)
		}
		t.Setenv("CONFIG_FILE", path)
		t.Setenv("SERVER_PORT", "7001")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TOTP.Issuer != "FileIssuer" {
			t.Errorf("expected TOTP.Issuer from file, got %s", cfg.TOTP.Issuer)
		}
		if cfg.Server.Port != "7001" {
			t.Errorf("expected env to override file, got %s", cfg.Server.Port)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for unsupported driver")
		}
	})
}
