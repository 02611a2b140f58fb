package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vbonduro/catchlogs/internal/objectstore"
)

// Bucket stores objects as files under basePath and issues URLs in the
// {base}/storage/v1/object/{public|sign}/{bucket}/{path} layout.
type Bucket struct {
	basePath   string
	name       string
	publicBase string
	signingKey []byte
	now        func() time.Time
}

type Option func(*Bucket)

// WithSigningKey enables CreateSignedURL. Without a key signing always fails
// and callers fall back to the public URL.
func WithSigningKey(key string) Option {
	return func(b *Bucket) {
		if key != "" {
			b.signingKey = []byte(key)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bucket) { b.now = now }
}

func NewBucket(basePath, name, publicBase string, opts ...Option) (*Bucket, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	b := &Bucket{
		basePath:   basePath,
		name:       name,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bucket) Name() string { return b.name }

// Private reports whether objects are served only through signed URLs, which
// is the case whenever a signing key is configured.
func (b *Bucket) Private() bool { return b.signingKey != nil }

func (b *Bucket) Upload(ctx context.Context, path, contentType string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := b.safeJoin(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return objectstore.ErrExists
		}
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close file: %w", err)
	}

	slog.Debug("object stored", "bucket", b.name, "path", path, "content_type", contentType)
	return nil
}

func (b *Bucket) Remove(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		filePath, err := b.safeJoin(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bucket) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	filePath, err := b.safeJoin(path)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", objectstore.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, contentTypeFor(filePath), nil
}

// List returns every object whose path starts with the directory prefix. An
// empty prefix lists the whole bucket.
func (b *Bucket) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	root := b.basePath
	if prefix != "" {
		var err error
		if root, err = b.safeJoin(prefix); err != nil {
			return nil, err
		}
	}

	var objects []objectstore.ObjectInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.basePath, p)
		if err != nil {
			return err
		}
		objects = append(objects, objectstore.ObjectInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return objects, nil
}

func (b *Bucket) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.publicBase, b.name, escapePath(path))
}

type signClaims struct {
	URL string `json:"url"`
	jwt.RegisteredClaims
}

func (b *Bucket) CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if b.signingKey == nil {
		return "", objectstore.ErrSigningDisabled
	}
	if _, err := b.safeJoin(path); err != nil {
		return "", err
	}

	now := b.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signClaims{
		URL: b.name + "/" + path,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(b.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}

	return fmt.Sprintf("%s/storage/v1/object/sign/%s/%s?token=%s",
		b.publicBase, b.name, escapePath(path), url.QueryEscape(signed)), nil
}

// VerifyToken checks that token was issued by this bucket for path and has
// not expired.
func (b *Bucket) VerifyToken(path, token string) error {
	if b.signingKey == nil {
		return objectstore.ErrSigningDisabled
	}
	claims := &signClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return b.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", objectstore.ErrInvalidToken, err)
	}
	if claims.URL != b.name+"/"+path {
		return objectstore.ErrInvalidToken
	}
	return nil
}

// safeJoin resolves path relative to basePath and rejects directory traversal.
func (b *Bucket) safeJoin(path string) (string, error) {
	absBase, err := filepath.Abs(b.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(b.basePath, filepath.FromSlash(path)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func contentTypeFor(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
