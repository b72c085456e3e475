package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/respond"
	"github.com/templui/ressona/internal/service"
	"github.com/templui/ressona/internal/workspace"
)

var streamKeepAlive = 25 * time.Second

type IntentionHandler struct {
	workspaces *workspace.Manager
	intentions *service.IntentionService
	version    string
}

func NewIntentionHandler(workspaces *workspace.Manager, intentions *service.IntentionService, version string) *IntentionHandler {
	return &IntentionHandler{
		workspaces: workspaces,
		intentions: intentions,
		version:    version,
	}
}

type submitResponse struct {
	*service.SubmitResult
	State StateView `json:"state"`
}

type toggleRequest struct {
	Current *bool `json:"current"`
}

type toggleResponse struct {
	ID           string `json:"id"`
	IsManifested bool   `json:"isManifested"`
}

// Submit sends the session's intention to the store.
func (h *IntentionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	result, err := h.intentions.Submit(r.Context(), ws.UserID, ws.Session)
	if err != nil {
		writeError(w, err, ws.Session.Snapshot().Message)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, submitResponse{
		SubmitResult: result,
		State:        viewOf(ws, h.version),
	})
}

// ToggleManifested flips isManifested given the value the client saw.
func (h *IntentionHandler) ToggleManifested(w http.ResponseWriter, r *http.Request) {
	id := ctxkeys.Identity(r.Context())
	intentionID := r.PathValue("id")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Current == nil {
		respond.WriteBadRequest(w, "The current manifestation status is required.")
		return
	}

	err := h.intentions.ToggleManifested(r.Context(), id.UserID, intentionID, *req.Current)
	if err != nil {
		writeError(w, err, "The manifestation status could not be updated.")
		return
	}

	respond.WriteJSON(w, http.StatusOK, toggleResponse{
		ID:           intentionID,
		IsManifested: !*req.Current,
	})
}

// Stream pushes the full view as server-sent events whenever the feed or
// the recording session changes.
func (h *IntentionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	synchronizer := ws.Feed()
	updates, stopFeed := synchronizer.Listen()
	defer stopFeed()
	states, stopSession := ws.Session.Watch()
	defer stopSession()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(view StateView) bool {
		data, err := json.Marshal(view)
		if err != nil {
			slog.Error("failed to encode state event", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	latestFeed := synchronizer.Latest()
	latestState := ws.Session.Snapshot()
	if !send(buildView(latestState, latestFeed, h.version)) {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			latestFeed = u
		case st, ok := <-states:
			if !ok {
				return
			}
			latestState = st
		case <-keepAlive.C:
			// A watching user is not idle.
			h.workspaces.Touch(ws)
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil || rc.Flush() != nil {
				return
			}
			continue
		}

		if !send(buildView(latestState, latestFeed, h.version)) {
			return
		}
	}
}
