package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/heartguard/heartguard-api/internal/cache"
	"github.com/heartguard/heartguard-api/internal/config"
	"github.com/heartguard/heartguard-api/internal/database"
	"github.com/heartguard/heartguard-api/internal/modules/admin"
	"github.com/heartguard/heartguard-api/internal/modules/user"
	"github.com/heartguard/heartguard-api/internal/notification"
	"github.com/heartguard/heartguard-api/internal/notification/templates"
	"github.com/heartguard/heartguard-api/internal/server"
	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
)

// Options for the CLI.
type Options struct {
	Port int `help:"Port to listen on (defaults to SERVER_PORT)" short:"p"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		// Use a structured logger
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		cfg, err := config.Load()
		if err != nil {
			logger.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		logger.Info("configuration loaded successfully", "env", cfg.Server.Env)

		ctx, cancel := context.WithCancel(context.Background())

		// --- Database & Cache ---
		dbPool, err := database.NewPostgresPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		logger.Info("successfully connected to postgres database")

		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		logger.Info("successfully connected to redis")

		// --- Notification ---
		emailSender := notification.NewLogEmailSender(logger)
		if cfg.SMTP.Host != "" {
			emailSender = notification.NewSMTPEmailSender(notification.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
			}, cfg.Timeouts.Notifier, logger)
		}
		smsSender := notification.NewLogSMSSender(logger)
		if cfg.SNS.Region != "" {
			sns, err := notification.NewSNSSMSSender(ctx, cfg.SNS.Region, cfg.SNS.SenderID, logger)
			if err != nil {
				logger.Error("failed to configure sns", "error", err)
				os.Exit(1)
			}
			smsSender = sns
		}
		notifier := notification.NewService(logger, emailSender, smsSender)
		engine := templates.NewEngine(templates.Config{}, logger)

		// --- Sessions & Tokens ---
		sessions, err := session.NewManager(session.Config{
			Secret:       cfg.JWTSecret,
			Issuer:       cfg.Session.Issuer,
			DefaultTTL:   cfg.Session.DefaultTTL,
			RememberTTL:  cfg.Session.RememberTTL,
			AdminTTL:     cfg.Session.AdminTTL,
			CookieDomain: cfg.Session.CookieDomain,
			CookieSecure: cfg.Session.CookieSecure,
			Timeout:      cfg.Timeouts.Store,
		}, session.NewRedisProvider(redisClient))
		if err != nil {
			logger.Error("failed to configure sessions", "error", err)
			os.Exit(1)
		}

		tokenCfg := token.Config{
			CodeTTL:         cfg.Token.CodeTTL,
			ResetTTL:        cfg.Token.ResetTTL,
			CodeLength:      cfg.Token.CodeLength,
			MaxAttempts:     cfg.Token.MaxAttempts,
			ResendCooldown:  cfg.Token.ResendCooldown,
			Pepper:          cfg.Token.Pepper,
			ResetURL:        cfg.Server.BaseURL + "/reset-password",
			StoreTimeout:    cfg.Timeouts.Store,
			DeliveryTimeout: cfg.Timeouts.Notifier,
		}
		tokenStore := token.NewPostgresStore(dbPool)
		issuer := token.NewIssuer(tokenStore, cache.NewThrottle(redisClient, "throttle:"),
			notification.NewTokenDeliverer(notifier, engine, logger), tokenCfg)
		verifier := token.NewVerifier(tokenStore, tokenCfg)

		// --- Module Initialization (Bottom-Up) ---

		// User Module
		userService := user.NewService(&user.Config{
			Repo:         user.NewRepository(dbPool),
			Issuer:       issuer,
			Verifier:     verifier,
			Sessions:     sessions,
			Logger:       logger,
			StoreTimeout: cfg.Timeouts.Store,
			CodeTTL:      cfg.Token.CodeTTL,
		})

		// Admin Module
		adminService := admin.NewService(
			[]admin.Probe{admin.PostgresProbe(dbPool), admin.RedisProbe(redisClient)},
			admin.BackendsFunc(func() map[string]string {
				out := map[string]string{}
				for ch, backend := range notifier.Backends() {
					out[string(ch)] = backend
				}
				return out
			}),
			cfg.Timeouts.Store, logger,
		)

		router, err := server.New(ctx, cfg, logger, &server.Deps{
			Users:    userService,
			Admin:    adminService,
			Sessions: sessions,
		})
		if err != nil {
			logger.Error("failed to build router", "error", err)
			os.Exit(1)
		}

		port := options.Port
		if port == 0 {
			fmt.Sscanf(cfg.Server.Port, "%d", &port)
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			logger.Info(fmt.Sprintf("Starting server on port %d...", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server failed to start", "error", err)
				os.Exit(1)
			}
		})
		hooks.OnStop(func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
			cancel()
			_ = redisClient.Close()
			dbPool.Close()
		})
	})
	cli.Run()
}
