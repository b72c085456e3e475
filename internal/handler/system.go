package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/ressona/internal/respond"
	"github.com/templui/ressona/internal/service"
)

// Pinger is any dependency the health check should reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	appName string
	appURL  string
	version string
	pingers map[string]Pinger
}

func NewSystemHandler(appName, appURL, version string, pingers map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		appName: appName,
		appURL:  appURL,
		version: version,
		pingers: pingers,
	}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: h.version, Checks: map[string]string{}}
	status := http.StatusOK

	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	respond.WriteJSON(w, status, resp)
}

func (h *SystemHandler) Share(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, service.Share(h.appName, h.appURL))
}
