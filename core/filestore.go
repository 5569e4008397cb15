package core

import (
	"context"
	"io"
	"time"
)

// FileStore keeps uploaded files (avatars, assignment and submission attachments).
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// URL returns a time-limited download link for key.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
