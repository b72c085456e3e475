package handler

import (
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/templui/ressona/internal/artifact"
	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/respond"
)

type ArtifactHandler struct {
	registry *artifact.Registry
}

func NewArtifactHandler(registry *artifact.Registry) *ArtifactHandler {
	return &ArtifactHandler{
		registry: registry,
	}
}

// Serve streams a live artifact from disk storage. Only the owning user
// can fetch it, and only until it is revoked.
func (h *ArtifactHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id := ctxkeys.Identity(r.Context())
	storagePath := r.PathValue("key")

	if !strings.HasPrefix(storagePath, "sessions/"+id.UserID+"/") {
		respond.WriteNotFound(w, "Not found.")
		return
	}

	a, err := h.registry.Lookup(path.Base(storagePath))
	if err != nil || a.StoragePath != storagePath {
		respond.WriteNotFound(w, "Not found.")
		return
	}

	rc, err := h.registry.Open(a)
	if err != nil {
		writeError(w, err, "Not found.")
		return
	}
	defer rc.Close()

	w.Header().Set("Cache-Control", "private, no-store")
	serveArtifact(w, r, rc, a.ContentType, a.CreatedAt)
}

// serveArtifact supports range requests when the blob is seekable, which
// audio elements rely on for scrubbing.
func serveArtifact(w http.ResponseWriter, r *http.Request, rc io.Reader, contentType string, modTime time.Time) {
	w.Header().Set("Content-Type", contentType)

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", modTime, rs)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
