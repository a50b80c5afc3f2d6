package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Server ServerConfig
	SMTP   SMTPConfig
	TOTP   TOTPConfig
	Auth   AuthConfig
	Log    LogConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type ServerConfig struct {
	Port            string
	PublicURL       string
	AllowedOrigins  string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type TOTPConfig struct {
	Issuer        string
	Skew          uint
	EncryptionKey string
}

type AuthConfig struct {
	IssueTokensBefore2FA           bool
	ChangePasswordRequireCurrent   bool
	RevokeSessionsOnPasswordChange bool
	ResetTokenTTL                  time.Duration
	BackupCodeCount                int
	PasswordMinLength              int
}

type LogConfig struct {
	Level string
	File  string
}

var defaults = map[string]interface{}{
	"DB_DRIVER":   "postgres",
	"DB_HOST":     "localhost",
	"DB_PORT":     "5432",
	"DB_USER":     "authgate",
	"DB_PASSWORD": "authgate_secret",
	"DB_NAME":     "authgate",
	"DB_SSLMODE":  "disable",
	"DB_PATH":     "authgate.db",

	"REDIS_URL": "",

	"JWT_SECRET":      "change-me-in-production",
	"JWT_ISSUER":      "authgate",
	"JWT_ACCESS_TTL":  5 * time.Minute,
	"JWT_REFRESH_TTL": 24 * time.Hour,

	"SERVER_PORT":             "8000",
	"PUBLIC_URL":              "",
	"CORS_ALLOWED_ORIGINS":    "http://localhost:3000,http://127.0.0.1:3000",
	"SERVER_REQUEST_TIMEOUT":  5 * time.Second,
	"SERVER_SHUTDOWN_TIMEOUT": 10 * time.Second,

	"SMTP_HOST":     "",
	"SMTP_PORT":     587,
	"SMTP_USERNAME": "",
	"SMTP_PASSWORD": "",
	"SMTP_FROM":     "no-reply@authgate.local",
	"SMTP_TIMEOUT":  5 * time.Second,

	"TOTP_ISSUER":         "AuthGate",
	"TOTP_SKEW":           1,
	"TOTP_ENCRYPTION_KEY": "",

	"AUTH_ISSUE_TOKENS_BEFORE_2FA":            false,
	"AUTH_CHANGE_PASSWORD_REQUIRE_CURRENT":    false,
	"AUTH_REVOKE_SESSIONS_ON_PASSWORD_CHANGE": false,
	"AUTH_RESET_TOKEN_TTL":                    24 * time.Hour,
	"AUTH_BACKUP_CODE_COUNT":                  10,
	"AUTH_PASSWORD_MIN_LENGTH":                8,

	"LOG_LEVEL": "info",
	"LOG_FILE":  "",
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// file is read first and environment variables override its values.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("CONFIG_FILE"); err != nil {
		return nil, err
	}
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		DB: DBConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			Path:     v.GetString("DB_PATH"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Issuer:     v.GetString("JWT_ISSUER"),
			AccessTTL:  v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTTL: v.GetDuration("JWT_REFRESH_TTL"),
		},
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			PublicURL:       strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
			AllowedOrigins:  v.GetString("CORS_ALLOWED_ORIGINS"),
			RequestTimeout:  v.GetDuration("SERVER_REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
			Timeout:  v.GetDuration("SMTP_TIMEOUT"),
		},
		TOTP: TOTPConfig{
			Issuer:        v.GetString("TOTP_ISSUER"),
			Skew:          v.GetUint("TOTP_SKEW"),
			EncryptionKey: v.GetString("TOTP_ENCRYPTION_KEY"),
		},
		Auth: AuthConfig{
			IssueTokensBefore2FA:           v.GetBool("AUTH_ISSUE_TOKENS_BEFORE_2FA"),
			ChangePasswordRequireCurrent:   v.GetBool("AUTH_CHANGE_PASSWORD_REQUIRE_CURRENT"),
			RevokeSessionsOnPasswordChange: v.GetBool("AUTH_REVOKE_SESSIONS_ON_PASSWORD_CHANGE"),
			ResetTokenTTL:                  v.GetDuration("AUTH_RESET_TOKEN_TTL"),
			BackupCodeCount:                v.GetInt("AUTH_BACKUP_CODE_COUNT"),
			PasswordMinLength:              v.GetInt("AUTH_PASSWORD_MIN_LENGTH"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			File:  v.GetString("LOG_FILE"),
		},
	}

	if cfg.TOTP.EncryptionKey == "" {
		cfg.TOTP.EncryptionKey = cfg.JWT.Secret
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("JWT token lifetimes must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("AUTH_RESET_TOKEN_TTL must be positive")
	}
	if c.Auth.BackupCodeCount <= 0 {
		return fmt.Errorf("AUTH_BACKUP_CODE_COUNT must be positive")
	}
	return nil
}
