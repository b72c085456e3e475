package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg := Load()
	assert.Equal(t, "Ressona", cfg.AppName)
	assert.Equal(t, "default-app-id", cfg.AppID)
	assert.Equal(t, "sql", cfg.StoreDriver)
	assert.Equal(t, 20, cfg.FeedLimit)
	assert.True(t, cfg.CaptureEnabled)
	assert.Equal(t, 720*time.Hour, cfg.JWTExpiry)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_ID", "ressona-prod")
	t.Setenv("FEED_LIMIT", "50")
	t.Setenv("CAPTURE_ENABLED", "false")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("CAPTURE_MAX_ACTIVE", "many")

	cfg := Load()
	assert.Equal(t, "ressona-prod", cfg.AppID)
	assert.Equal(t, 50, cfg.FeedLimit)
	assert.False(t, cfg.CaptureEnabled)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 64, cfg.CaptureMaxActive)
}

func TestSanitized(t *testing.T) {
	cfg := &Config{
		AppName:      "Ressona",
		JWTSecret:    "secret",
		DBConnection: "postgres://user:pass@db/ressona",
		RedisURL:     "redis://:pass@cache:6379",
		SentryDSN:    "https://key@sentry.io/1",
		S3AccessKey:  "ak",
		S3SecretKey:  "sk",
	}

	clean := cfg.Sanitized()
	assert.Equal(t, "Ressona", clean.AppName)
	assert.Empty(t, clean.JWTSecret)
	assert.Empty(t, clean.DBConnection)
	assert.Empty(t, clean.RedisURL)
	assert.Empty(t, clean.SentryDSN)
	assert.Empty(t, clean.S3AccessKey)
	assert.Empty(t, clean.S3SecretKey)
	assert.Equal(t, "secret", cfg.JWTSecret)
}
