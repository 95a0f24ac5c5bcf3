package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/execassist/internal/notifications"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/execassist")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.NotificationsEnabled)
	assert.Equal(t, 5*time.Minute, cfg.UrgentScanInterval)
	assert.Equal(t, time.Minute, cfg.DigestScanInterval)
	assert.Equal(t, notifications.DefaultDigestTimes, cfg.DigestTimes)
	assert.Equal(t, time.UTC, cfg.DigestLocation)
	assert.Equal(t, 15*time.Second, cfg.SendTimeout)
	assert.Equal(t, 15*time.Minute, cfg.EngineInterval)
	assert.Equal(t, 5*time.Minute, cfg.EngineMinInterval)
	assert.Equal(t, 2*time.Hour, cfg.EngineMaxInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.LogRetention)
	assert.Zero(t, cfg.AdminBootstrapUserID)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/execassist")
	t.Setenv("NOTIFICATIONS_ENABLED", "false")
	t.Setenv("DIGEST_TIMES", "08:30, 18:00")
	t.Setenv("DIGEST_TIMEZONE", "Europe/Berlin")
	t.Setenv("URGENT_SCAN_INTERVAL_SECONDS", "120")
	t.Setenv("ADMIN_BOOTSTRAP_USER_ID", "1")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NotificationsEnabled)
	assert.Equal(t, []notifications.DigestTime{{Hour: 8, Minute: 30}, {Hour: 18, Minute: 0}}, cfg.DigestTimes)
	assert.Equal(t, "Europe/Berlin", cfg.DigestLocation.String())
	assert.Equal(t, 2*time.Minute, cfg.UrgentScanInterval)
	assert.Equal(t, int64(1), cfg.AdminBootstrapUserID)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowOrigins)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err, "missing database url")

	t.Setenv("DATABASE_URL", "postgres://localhost/execassist")
	t.Setenv("DIGEST_TIMES", "25:00")
	_, err = Load()
	assert.ErrorContains(t, err, "DIGEST_TIMES")

	t.Setenv("DIGEST_TIMES", "")
	t.Setenv("DIGEST_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "DIGEST_TIMEZONE")
}
