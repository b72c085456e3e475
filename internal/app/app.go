package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/templui/ressona/internal/artifact"
	"github.com/templui/ressona/internal/capture"
	"github.com/templui/ressona/internal/config"
	"github.com/templui/ressona/internal/db"
	"github.com/templui/ressona/internal/identity"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/repository"
	"github.com/templui/ressona/internal/service"
	"github.com/templui/ressona/internal/storage"
	"github.com/templui/ressona/internal/store"
	"github.com/templui/ressona/internal/workspace"
)

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	Store             store.Store
	Storage           storage.Storage
	Artifacts         *artifact.Registry
	Device            *capture.UploadDevice
	Identity          *identity.Provider
	Workspaces        *workspace.Manager
	IntentionService  *service.IntentionService
	unsubscribeLogins func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Cfg: cfg}

	// Intention store
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = st

	// Artifact storage
	blobs, err := storage.New(cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Storage = blobs
	a.Artifacts = artifact.NewRegistry(blobs)

	// Capture
	a.Device = capture.NewUploadDevice(capture.UploadConfig{
		Enabled:   cfg.CaptureEnabled,
		MaxActive: cfg.CaptureMaxActive,
		MaxBytes:  cfg.CaptureMaxBytes,
	})

	// Identity
	a.Identity = identity.NewProvider(cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction(), cfg.AppName)
	if !a.Identity.Available() {
		slog.Warn("JWT_SECRET not set, identities are local to this browser")
	}
	a.unsubscribeLogins = a.Identity.OnAuthStateChanged(func(id model.Identity) {
		slog.Debug("auth state changed", "user_id", id.UserID, "kind", id.Kind)
	})

	// Services
	a.IntentionService = service.NewIntentionService(st, cfg.AppID)
	a.Workspaces = workspace.NewManager(workspace.Options{
		Store:       st,
		AppID:       cfg.AppID,
		FeedLimit:   cfg.FeedLimit,
		Device:      a.Device,
		Artifacts:   a.Artifacts,
		IdleTimeout: cfg.SessionIdleTimeout,
	})

	return a, nil
}

// openStore picks the intention store. The SQL store runs migrations on
// start and fans change notifications out through redis when configured.
func (a *App) openStore(ctx context.Context) (store.Store, error) {
	cfg := a.Cfg

	switch cfg.StoreDriver {
	case "memory":
		slog.Info("using in-memory intention store")
		return store.NewMemory(), nil
	case "sql", "":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = database

	err = db.Migrate(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var notifier store.Notifier
	if cfg.RedisURL != "" {
		redisNotifier, err := store.NewRedisNotifier(cfg.RedisURL)
		if err != nil {
			_ = db.Close(database)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		notifier = redisNotifier
		slog.Info("intention changes published through redis")
	} else {
		notifier = store.NewLocalNotifier()
	}

	return store.NewSQL(repository.NewIntentionRepository(database), notifier), nil
}

// Close shuts the workspaces down first so every artifact is revoked
// while storage is still there.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.unsubscribeLogins != nil {
		a.unsubscribeLogins()
	}
	if a.Workspaces != nil {
		errs = append(errs, a.Workspaces.Close(ctx))
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}

	return errors.Join(errs...)
}
