package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName    string
	AppEnv     string
	AppURL     string
	AppID      string // Partition prefix: artifacts/{AppID}/users/{uid}/intentions
	AppVersion string
	Port       string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Intention store
	StoreDriver string // "sql" or "memory"
	RedisURL    string // Optional: cross-process change notifications
	FeedLimit   int

	// Identity
	JWTSecret string // Empty: identity runs in local fallback mode
	JWTExpiry time.Duration

	// Capture
	CaptureEnabled   bool
	CaptureMaxActive int
	CaptureMaxBytes  int64

	// Sessions
	SessionIdleTimeout time.Duration

	// Observability (optional)
	SentryDSN string

	// Artifact storage
	StorageDriver   string // "disk" or "s3"
	StoragePath     string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PresignExpiry time.Duration // Playback links for recorded audio and previews
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:    envString("APP_NAME", "Ressona"),
		AppEnv:     envString("APP_ENV", "development"),
		AppURL:     envString("APP_URL", "http://localhost:8090"),
		AppID:      envString("APP_ID", "default-app-id"),
		AppVersion: envString("APP_VERSION", "v1.0.3"),
		Port:       envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/ressona.db"),

		// Store
		StoreDriver: envString("STORE_DRIVER", "sql"),
		RedisURL:    envString("REDIS_URL", ""),
		FeedLimit:   envInt("FEED_LIMIT", 20),

		// Identity
		JWTSecret: envString("JWT_SECRET", ""),
		JWTExpiry: envDuration("JWT_EXPIRY", 720*time.Hour), // 30 days

		// Capture
		CaptureEnabled:   envBool("CAPTURE_ENABLED", true),
		CaptureMaxActive: envInt("CAPTURE_MAX_ACTIVE", 64),
		CaptureMaxBytes:  int64(envInt("CAPTURE_MAX_BYTES", 50<<20)), // 50MB

		// Sessions
		SessionIdleTimeout: envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Artifact storage
		StorageDriver:   envString("STORAGE_DRIVER", "disk"),
		StoragePath:     envString("STORAGE_PATH", "./data/artifacts"),
		S3Region:        envString("S3_REGION", ""),
		S3Bucket:        envString("S3_BUCKET", ""),
		S3AccessKey:     envString("S3_ACCESS_KEY", ""),
		S3SecretKey:     envString("S3_SECRET_KEY", ""),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 1*time.Hour),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures the deployment does not silently run in
// degraded modes that are only meant for local testing.
func validateProduction(cfg *Config) {
	if cfg.JWTSecret == "" {
		slog.Error("production deployment requires JWT_SECRET",
			"hint", "set APP_ENV=development to run with locally generated identities")
		os.Exit(1)
	}
	if cfg.StorageDriver == "s3" && cfg.S3Bucket == "" {
		slog.Error("STORAGE_DRIVER=s3 requires S3_BUCKET")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy without credentials, safe to hand to handlers.
func (c *Config) Sanitized() *Config {
	clean := *c
	clean.JWTSecret = ""
	clean.DBConnection = ""
	clean.RedisURL = ""
	clean.SentryDSN = ""
	clean.S3AccessKey = ""
	clean.S3SecretKey = ""
	return &clean
}
