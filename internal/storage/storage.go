package storage

import (
	"fmt"
	"io"
	"log/slog"

	cfg "github.com/templui/ressona/internal/config"
)

// Storage holds artifact bytes. Paths are slash separated keys.
type Storage interface {
	// Save stores a blob at the given path
	Save(path string, r io.Reader) error

	// Open streams a stored blob back
	Open(path string) (io.ReadCloser, error)

	// Delete removes the blob at the given path
	Delete(path string) error

	// URL returns an address the presentation layer can fetch the blob from
	URL(path string) string
}

// New picks the storage backend from app config.
// disk: files under STORAGE_PATH, served back through /api/artifacts/.
// s3: any S3-compatible bucket (AWS, MinIO, R2, Spaces), served via presigned URLs.
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageDriver {
	case "s3":
		slog.Info("initializing S3 artifact storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:        c.S3Region,
			Bucket:        c.S3Bucket,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Endpoint:      c.S3Endpoint,
			PresignExpiry: c.S3PresignExpiry,
		})
	case "disk", "":
		slog.Info("initializing disk artifact storage", "path", c.StoragePath)
		return NewDiskStorage(c.StoragePath, "/api/artifacts")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}
