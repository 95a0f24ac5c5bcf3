// Command api is the execassist server: the notification scheduler, the
// autonomous engine, the real-time lead listener and the admin API.
//
// Usage:
//
//	execassist-api
//	API_PORT=8080 execassist-api

// @title Execassist API
// @version 1.0.0
// @description Notification scheduler and autonomous engine administration.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/execassist/internal/api"
	"github.com/albapepper/execassist/internal/api/handler"
	"github.com/albapepper/execassist/internal/app"
	"github.com/albapepper/execassist/internal/cache"
	"github.com/albapepper/execassist/internal/config"
	"github.com/albapepper/execassist/internal/db"
	"github.com/albapepper/execassist/internal/listener"
	"github.com/albapepper/execassist/internal/maintenance"

	_ "github.com/albapepper/execassist/docs" // swagger docs
)

const version = "1.0.0"

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	a, err := app.New(ctx, cfg, pool.Pool, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	// Notification scheduler (no-op when NOTIFICATIONS_ENABLED=false)
	if err := a.Scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start notification scheduler", "error", err)
		os.Exit(1)
	}

	// Autonomous engine
	if cfg.EngineEnabled {
		if err := a.Engine.Start(ctx); err != nil {
			logger.Error("Failed to start autonomous engine", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Autonomous engine disabled (AUTONOMOUS_ENGINE_ENABLED=false)")
	}

	// Start LISTEN/NOTIFY consumer for real-time lead events
	if cfg.NotificationsEnabled {
		go listener.Start(ctx, cfg.DatabaseURL, a.Dispatcher, logger)
	}

	// Start maintenance tickers (ledger purge)
	mcfg := maintenance.DefaultConfig()
	mcfg.LedgerRetention = cfg.LogRetention
	go maintenance.Start(ctx, a.Store, mcfg, nil, logger)

	// Create router
	h := handler.New(handler.Deps{
		Base:      ctx,
		Engine:    a.Engine,
		Scheduler: a.Scheduler,
		Stats:     a.Store,
		DB:        pool,
		Cache:     cache.New(true),
		Version:   version,
		Logger:    logger,
	})
	auth := api.NewAuthenticator(cfg.JWTSecret, cfg.AdminBootstrapUserID)
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			logger.Error("AUTH_JWT_SECRET is required in production")
			os.Exit(1)
		}
		logger.Warn("AUTH_JWT_SECRET not set; admin API disabled")
	}
	router := api.NewRouter(h, auth, a.Registry, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // manual engine cycles and scans run inline
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting execassist API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
