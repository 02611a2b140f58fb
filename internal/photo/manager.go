package photo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/objectstore"
)

const signedURLTTL = 24 * time.Hour

// EntryPhotos reads and writes the photo reference column of an entry.
type EntryPhotos interface {
	GetByID(ctx context.Context, ownerID string, id int64) (*domain.Entry, error)
	SetPhoto(ctx context.Context, ownerID string, id int64, ref *string) error
}

type Manager struct {
	bucket     objectstore.Bucket
	bucketName string
	logger     *slog.Logger
	newID      func() string
}

func NewManager(bucket objectstore.Bucket, bucketName string, logger *slog.Logger) *Manager {
	return &Manager{
		bucket:     bucket,
		bucketName: bucketName,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

func (m *Manager) Parse(stored *string) Ref {
	return ParseRef(stored, m.bucketName)
}

// StoragePath returns the bucket path behind stored, if any.
func (m *Manager) StoragePath(stored *string) (string, bool) {
	return m.Parse(stored).Path()
}

// Upload stores r under {owner}/{uuid}.{ext} and returns that path as the
// reference to persist. The extension comes from filename, defaulting to jpg.
func (m *Manager) Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	path := fmt.Sprintf("%s/%s.%s", ownerID, m.newID(), extension(filename))

	if err := m.bucket.Upload(ctx, path, contentType, r); err != nil {
		return "", &domain.StorageError{Op: "upload", Err: err}
	}

	m.logger.Info("photo uploaded", "owner_id", ownerID, "path", path)
	return path, nil
}

// ResolveURL turns a stored reference into a fetchable URL. Bucket paths are
// signed for 24h, falling back to the public URL when signing fails.
func (m *Manager) ResolveURL(ctx context.Context, stored *string) *string {
	ref := m.Parse(stored)
	switch ref.Kind() {
	case None:
		return nil
	case External:
		return ref.Stored()
	}

	path, _ := ref.Path()
	signed, err := m.bucket.CreateSignedURL(ctx, path, signedURLTTL)
	if err == nil && signed != "" {
		return &signed
	}
	m.logger.Debug("signing photo url failed, using public url", "path", path, "error", err)
	public := m.bucket.PublicURL(path)
	return &public
}

// Delete removes the blob behind stored. References without a bucket path are
// a no-op.
func (m *Manager) Delete(ctx context.Context, stored *string) error {
	path, ok := m.StoragePath(stored)
	if !ok {
		return nil
	}
	if err := m.bucket.Remove(ctx, []string{path}); err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	m.logger.Info("photo deleted", "path", path)
	return nil
}

// Reassign persists next as the entry's photo reference and returns the
// reference whose blob is now orphaned, for the caller to Delete once the
// write is durable. A bucket path in next must be the entry's current photo
// or live under ownerID's prefix.
func (m *Manager) Reassign(ctx context.Context, repo EntryPhotos, ownerID string, entryID int64, next *string) (*string, error) {
	current, err := repo.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.EntryNotFound(entryID)
	}
	if err := m.checkOwner(ownerID, current.PhotoRef, next); err != nil {
		return nil, err
	}

	stale := m.Stale(current.PhotoRef, next)
	if err := repo.SetPhoto(ctx, ownerID, entryID, m.Parse(next).Stored()); err != nil {
		return nil, err
	}
	return stale, nil
}

func (m *Manager) checkOwner(ownerID string, current, next *string) error {
	nextPath, ok := m.StoragePath(next)
	if !ok {
		return nil
	}
	if currentPath, ok := m.StoragePath(current); ok && currentPath == nextPath {
		return nil
	}
	if path.Clean(nextPath) != nextPath || !strings.HasPrefix(nextPath, ownerID+"/") {
		return domain.NewValidationError("photoUrl", "does not belong to this account")
	}
	return nil
}

// Stale returns the current reference when replacing it with next would orphan
// its blob, or nil when nothing needs deleting.
func (m *Manager) Stale(current, next *string) *string {
	currentPath, ok := m.StoragePath(current)
	if !ok {
		return nil
	}
	if nextPath, ok := m.StoragePath(next); ok && nextPath == currentPath {
		return nil
	}
	return current
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return "jpg"
	}
	ext := strings.ToLower(filename[i+1:])
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return "jpg"
		}
	}
	return ext
}
