// Package artifact materializes session blobs (recorded audio, image
// previews) into storage and tracks them until they are revoked.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/templui/ressona/internal/metrics"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/storage"
)

var (
	ErrRevoked  = errors.New("artifact revoked")
	ErrNotFound = errors.New("artifact not found")
)

type Registry struct {
	storage storage.Storage

	mu   sync.Mutex
	live map[string]*model.Artifact
}

func NewRegistry(storage storage.Storage) *Registry {
	return &Registry{
		storage: storage,
		live:    make(map[string]*model.Artifact),
	}
}

// Materialize stores data and returns a handle the caller owns until Revoke.
func (r *Registry) Materialize(ownerID, kind, contentType string, data []byte) (*model.Artifact, error) {
	key := uuid.New().String()
	storagePath := path.Join("sessions", ownerID, kind+"s", key)

	err := r.storage.Save(storagePath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	a := &model.Artifact{
		Key:         key,
		Kind:        kind,
		ContentType: contentType,
		Size:        int64(len(data)),
		StoragePath: storagePath,
		URL:         r.storage.URL(storagePath),
		CreatedAt:   time.Now(),
	}

	r.mu.Lock()
	r.live[key] = a
	r.mu.Unlock()
	metrics.LiveArtifacts.Inc()

	return a, nil
}

// Revoke releases the artifact. Revoking twice is a no-op.
func (r *Registry) Revoke(a *model.Artifact) error {
	if a == nil {
		return nil
	}

	r.mu.Lock()
	_, ok := r.live[a.Key]
	delete(r.live, a.Key)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.LiveArtifacts.Dec()

	err := r.storage.Delete(a.StoragePath)
	if err != nil {
		// The handle is gone either way; the blob is orphaned at worst.
		slog.Error("failed to delete artifact from storage", "error", err, "path", a.StoragePath)
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	return nil
}

// Open streams a live artifact.
func (r *Registry) Open(a *model.Artifact) (io.ReadCloser, error) {
	if a == nil {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	_, ok := r.live[a.Key]
	r.mu.Unlock()
	if !ok {
		return nil, ErrRevoked
	}

	return r.storage.Open(a.StoragePath)
}

// Lookup finds a live artifact by key.
func (r *Registry) Lookup(key string) (*model.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.live[key]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Live reports how many artifacts are held.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
