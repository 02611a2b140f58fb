// Package objectstore is the blob storage collaborator behind catch photos.
// Objects live in a named bucket and are addressed by slash-separated paths.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrExists          = errors.New("object already exists")
	ErrSigningDisabled = errors.New("signed urls are not configured")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

type Bucket interface {
	// Upload stores r at path. Existing objects are never overwritten.
	Upload(ctx context.Context, path, contentType string, r io.Reader) error
	// Remove deletes the given paths. Paths that do not exist are skipped.
	Remove(ctx context.Context, paths []string) error
	CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	PublicURL(path string) string
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
}

type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}
