package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/database"
	"github.com/authgate/backend/internal/handlers"
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/services"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const blacklistPurgeInterval = 15 * time.Minute

type purgingBlacklist interface {
	services.Blacklist
	PurgeExpired(ctx context.Context) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	defer logger.Sync()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var blacklist purgingBlacklist
	if cfg.Redis.URL != "" {
		client, err := store.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer client.Close()
		blacklist = store.NewRedisBlacklist(client)
	} else {
		blacklist = store.NewTokenBlacklist(db)
	}
	go purgeRevokedTokens(ctx, blacklist)

	var notifier services.Notifier = services.LogNotifier{}
	if cfg.SMTP.Host != "" {
		notifier = services.NewSMTPNotifier(cfg.SMTP, cfg.Auth.ResetTokenTTL)
	}

	secretBox, err := utils.NewSecretBox(cfg.TOTP.EncryptionKey)
	if err != nil {
		log.Fatalf("totp secret encryption setup failed: %v", err)
	}

	users := store.NewUserStore(db)
	authService := services.NewAuthService(services.AuthDeps{
		Users:     users,
		Issuer:    services.NewTokenIssuer(cfg.JWT, blacklist),
		TOTP:      services.NewTOTPEngine(cfg.TOTP.Issuer, cfg.TOTP.Skew),
		Backup:    services.NewBackupCodeManager(users, cfg.Auth.BackupCodeCount),
		Ledger:    services.NewResetLedger(store.NewResetTokenStore(db), cfg.Auth.ResetTokenTTL),
		Notifier:  notifier,
		Policy:    services.DefaultPasswordPolicy(cfg.Auth.PasswordMinLength),
		SecretBox: secretBox,
		Options: services.AuthOptions{
			IssueTokensBefore2FA:           cfg.Auth.IssueTokensBefore2FA,
			ChangePasswordRequireCurrent:   cfg.Auth.ChangePasswordRequireCurrent,
			RevokeSessionsOnPasswordChange: cfg.Auth.RevokeSessionsOnPasswordChange,
		},
	})

	authHandler := handlers.NewAuthHandler(authService, cfg.Server.PublicURL)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	app.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app.Group("/api/auth"), authHandler, authMiddleware)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":      cfg.Server.Port,
		"address":   listenAddr,
		"db_driver": cfg.DB.Driver,
		"redis":     cfg.Redis.URL != "",
		"smtp":      cfg.SMTP.Host != "",
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		stop()
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			log.Printf("forced shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

// purgeRevokedTokens drops blacklist rows whose refresh token has expired.
func purgeRevokedTokens(ctx context.Context, blacklist purgingBlacklist) {
	ticker := time.NewTicker(blacklistPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := blacklist.PurgeExpired(ctx)
			if err != nil {
				logger.Error("revoked_token_purge_failed", err, nil)
				continue
			}
			if removed > 0 {
				logger.Info("revoked_tokens_purged", map[string]interface{}{"removed": removed})
			}
		}
	}
}
