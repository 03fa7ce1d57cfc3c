package ports

import (
	"context"
	"time"
)

// ArtifactStore keeps source PDFs and baked output.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a time-limited download link for key.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
