package handler

import (
	"log/slog"
	"net/http"

	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/feed"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/service"
	"github.com/templui/ressona/internal/workspace"
)

// StateView is everything the client renders: the feed, the coherence
// level and the recording session.
type StateView struct {
	Intentions     []model.Intention     `json:"intentions"`
	VibrationLevel float64               `json:"vibrationLevel"`
	Band           service.CoherenceBand `json:"band"`
	RecordingState model.RecordingState  `json:"recordingState"`
	Message        string                `json:"message"`
	Processable    bool                  `json:"processable"`
	FeedError      string                `json:"feedError,omitempty"`
	Version        string                `json:"version"`
}

func buildView(st model.RecordingState, u feed.Update, version string) StateView {
	intentions := u.Intentions
	if intentions == nil {
		intentions = []model.Intention{}
	}

	view := StateView{
		Intentions:     intentions,
		VibrationLevel: u.VibrationLevel,
		Band:           service.Band(u.VibrationLevel),
		RecordingState: st,
		Message:        st.Message,
		Processable:    service.IsProcessable(st),
		Version:        version,
	}
	if u.Err != nil {
		view.FeedError = "Intentions are not syncing. Reload to reconnect."
	}
	return view
}

func viewOf(ws *workspace.Workspace, version string) StateView {
	return buildView(ws.Session.Snapshot(), ws.Feed().Latest(), version)
}

// workspaceFor opens the caller's workspace, writing the error response
// itself when that fails.
func workspaceFor(w http.ResponseWriter, r *http.Request, workspaces *workspace.Manager) (*workspace.Workspace, bool) {
	id := ctxkeys.Identity(r.Context())

	ws, err := workspaces.Get(r.Context(), id.UserID)
	if err != nil {
		slog.Error("failed to open workspace", "error", err, "user_id", id.UserID)
		writeError(w, err, "Your intentions could not be loaded.")
		return nil, false
	}
	return ws, true
}
