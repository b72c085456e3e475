package routes

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/templui/ressona/internal/app"
	"github.com/templui/ressona/internal/handler"
	"github.com/templui/ressona/internal/middleware"
	"github.com/templui/ressona/internal/respond"
	"github.com/templui/ressona/internal/storage"
)

// SetupRoutes returns the root handler and a stop func for its background
// helpers.
func SetupRoutes(app *app.App) (http.Handler, func()) {
	// Handlers
	auth := handler.NewAuthHandler(app.Identity)
	session := handler.NewSessionHandler(app.Workspaces, app.Cfg.AppVersion)
	intention := handler.NewIntentionHandler(app.Workspaces, app.IntentionService, app.Cfg.AppVersion)
	artifacts := handler.NewArtifactHandler(app.Artifacts)
	system := handler.NewSystemHandler(app.Cfg.AppName, app.Cfg.AppURL, app.Cfg.AppVersion, map[string]handler.Pinger{
		"store": app.Store,
	})

	mux := http.NewServeMux()
	require := middleware.RequireIdentity

	// ============================================================================
	// SYSTEM
	// ============================================================================

	mux.HandleFunc("GET /healthz", system.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/share", system.Share)

	// ============================================================================
	// AUTH (rate limited)
	// ============================================================================

	limiter := middleware.NewRateLimiter(20, 15*time.Minute)
	rateLimit := middleware.RateLimit(limiter)

	mux.HandleFunc("POST /api/auth/anonymous", rateLimit(auth.Anonymous))
	mux.HandleFunc("POST /api/auth/token", rateLimit(auth.Token))
	mux.HandleFunc("POST /api/auth/signout", auth.SignOut)

	// ============================================================================
	// SESSION
	// ============================================================================

	mux.HandleFunc("GET /api/state", require(session.State))
	mux.HandleFunc("PUT /api/session/text", require(session.SetText))
	mux.HandleFunc("POST /api/session/recording/start", require(session.StartRecording))
	mux.HandleFunc("POST /api/session/recording/chunks", require(session.WriteChunk))
	mux.HandleFunc("POST /api/session/recording/stop", require(session.StopRecording))
	mux.HandleFunc("GET /api/session/audio", require(session.Audio))
	mux.HandleFunc("DELETE /api/session/audio", require(session.RemoveAudio))
	mux.HandleFunc("POST /api/session/image", require(session.AttachImage))
	mux.HandleFunc("DELETE /api/session/image", require(session.RemoveImage))
	mux.HandleFunc("DELETE /api/session", require(session.Close))

	// ============================================================================
	// INTENTIONS
	// ============================================================================

	mux.HandleFunc("POST /api/intentions", require(intention.Submit))
	mux.HandleFunc("POST /api/intentions/{id}/manifested", require(intention.ToggleManifested))
	mux.HandleFunc("GET /api/intentions/stream", require(intention.Stream))

	// Disk-backed artifacts; S3 hands out presigned URLs instead
	if _, ok := app.Storage.(*storage.DiskStorage); ok {
		mux.HandleFunc("GET /api/artifacts/{key...}", require(artifacts.Serve))
	}

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", func(w http.ResponseWriter, r *http.Request) {
		respond.WriteNotFound(w, "Not found.")
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Config(app.Cfg),
		middleware.RequestLogging,
		middleware.Identity(app.Identity),
	)

	return handler, limiter.Stop
}
