// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/ctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/execassist/internal/notifications"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Notification scheduler
	NotificationsEnabled bool
	UrgentScanInterval   time.Duration
	DigestScanInterval   time.Duration
	DigestTimes          []notifications.DigestTime
	DigestLocation       *time.Location
	SendTimeout          time.Duration
	LogRetention         time.Duration

	// Autonomous engine
	EngineEnabled     bool
	EngineInterval    time.Duration
	EngineMinInterval time.Duration
	EngineMaxInterval time.Duration

	// Outbound services
	SendGridAPIKey  string
	NotifyFromEmail string
	SlackBotToken   string
	AnthropicAPIKey string
	AnthropicModel  string

	// Coordination and auth
	RedisURL             string
	JWTSecret            string
	AdminBootstrapUserID int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	digestTimes, err := notifications.ParseDigestTimes(envOr("DIGEST_TIMES", "07:00,12:00,17:00"))
	if err != nil {
		return nil, fmt.Errorf("DIGEST_TIMES: %w", err)
	}
	tz := envOr("DIGEST_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("DIGEST_TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		NotificationsEnabled: envBool("NOTIFICATIONS_ENABLED", true),
		UrgentScanInterval:   time.Duration(envInt("URGENT_SCAN_INTERVAL_SECONDS", 300)) * time.Second,
		DigestScanInterval:   time.Duration(envInt("DIGEST_SCAN_INTERVAL_SECONDS", 60)) * time.Second,
		DigestTimes:          digestTimes,
		DigestLocation:       loc,
		SendTimeout:          time.Duration(envInt("NOTIFICATION_SEND_TIMEOUT_SECONDS", 15)) * time.Second,
		LogRetention:         time.Duration(envInt("NOTIFICATION_LOG_RETENTION_DAYS", 30)) * 24 * time.Hour,

		EngineEnabled:     envBool("AUTONOMOUS_ENGINE_ENABLED", true),
		EngineInterval:    time.Duration(envInt("ENGINE_INTERVAL_MINUTES", 15)) * time.Minute,
		EngineMinInterval: time.Duration(envInt("ENGINE_MIN_INTERVAL_MINUTES", 5)) * time.Minute,
		EngineMaxInterval: time.Duration(envInt("ENGINE_MAX_INTERVAL_MINUTES", 120)) * time.Minute,

		SendGridAPIKey:  envOr("SENDGRID_API_KEY", ""),
		NotifyFromEmail: envOr("NOTIFY_FROM_EMAIL", ""),
		SlackBotToken:   envOr("SLACK_BOT_TOKEN", ""),
		AnthropicAPIKey: envOr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", ""),

		RedisURL:             envOr("REDIS_URL", ""),
		JWTSecret:            envOr("AUTH_JWT_SECRET", ""),
		AdminBootstrapUserID: int64(envInt("ADMIN_BOOTSTRAP_USER_ID", 0)),
	}

	if cfg.EngineMinInterval <= 0 || cfg.EngineMaxInterval < cfg.EngineMinInterval {
		return nil, fmt.Errorf("engine interval bounds [%v, %v] are invalid", cfg.EngineMinInterval, cfg.EngineMaxInterval)
	}
	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
