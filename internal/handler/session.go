package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/respond"
	"github.com/templui/ressona/internal/workspace"
)

const (
	maxChunkBytes = 4 << 20  // 4MB per uploaded audio chunk
	maxImageBytes = 32 << 20 // multipart memory before spilling to disk
)

type SessionHandler struct {
	workspaces *workspace.Manager
	version    string
}

func NewSessionHandler(workspaces *workspace.Manager, version string) *SessionHandler {
	return &SessionHandler{
		workspaces: workspaces,
		version:    version,
	}
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

func (h *SessionHandler) SetText(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid request body.")
		return
	}

	if err := ws.Session.SetText(req.Text); err != nil {
		writeError(w, err, "")
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

func (h *SessionHandler) StartRecording(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	if err := ws.Session.StartRecording(r.Context()); err != nil {
		writeError(w, err, ws.Session.Snapshot().Message)
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

// WriteChunk appends the raw request body to the open recording.
func (h *SessionHandler) WriteChunk(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChunkBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.WriteError(w, http.StatusRequestEntityTooLarge, "Audio chunk too large.")
			return
		}
		respond.WriteBadRequest(w, "Could not read audio chunk.")
		return
	}

	if err := ws.Session.WriteAudio(chunk); err != nil {
		writeError(w, err, "Audio chunk rejected.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) StopRecording(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	if err := ws.Session.StopRecording(r.Context()); err != nil {
		writeError(w, err, "")
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

// Audio streams the held recording back for review.
func (h *SessionHandler) Audio(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	rc, a, err := ws.Session.Playback(r.Context())
	if err != nil {
		writeError(w, err, ws.Session.Snapshot().Message)
		return
	}
	if rc == nil {
		respond.WriteNotFound(w, "There is no recording yet.")
		return
	}
	defer rc.Close()

	serveArtifact(w, r, rc, a.ContentType, a.CreatedAt)
}

func (h *SessionHandler) RemoveAudio(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	if err := ws.Session.RemoveAudio(r.Context()); err != nil {
		writeError(w, err, "")
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

// AttachImage reads the multipart "image" field.
func (h *SessionHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		respond.WriteBadRequest(w, "Invalid upload.")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respond.WriteBadRequest(w, "No image selected.")
		return
	}
	defer file.Close()

	if err := ws.Session.AttachImage(r.Context(), header.Filename, file); err != nil {
		writeError(w, err, ws.Session.Snapshot().Message)
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

func (h *SessionHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(w, r, h.workspaces)
	if !ok {
		return
	}

	if err := ws.Session.RemoveImage(r.Context()); err != nil {
		writeError(w, err, "")
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(ws, h.version))
}

// Close tears the workspace down. The next request starts a fresh one.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := ctxkeys.Identity(r.Context())

	if err := h.workspaces.Evict(r.Context(), id.UserID); err != nil {
		slog.Error("failed to close session", "error", err, "user_id", id.UserID)
		writeError(w, err, "The session could not be closed cleanly.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
