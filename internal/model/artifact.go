package model

import (
	"time"
)

const (
	ArtifactKindAudio = "audio"
	ArtifactKindImage = "image"
)

// Artifact is a locally materialized blob (recorded audio, image preview)
// owned by exactly one session until it is revoked.
type Artifact struct {
	Key         string    `json:"key"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"-"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}
