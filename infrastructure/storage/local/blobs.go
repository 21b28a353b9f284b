// Package local stores uploaded media on the local filesystem and serves
// it under a public base URL.
package local

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"mindo/pkg/errors"
)

// BlobStorage implements ports.BlobStorage in a directory
type BlobStorage struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewBlobStorage creates storage rooted at dir. Files are reachable at
// baseURL/<folder>/<name> once Handler is mounted there.
func NewBlobStorage(dir, baseURL string, logger *zap.Logger) (*BlobStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewInternalError("failed to create blob directory").WithCause(err)
	}
	return &BlobStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// Upload writes r to folder/name. Existing files are never overwritten.
func (s *BlobStorage) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	rel, err := cleanRelative(folder + "/" + name)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.NewInternalError("failed to create blob folder").WithCause(err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return "", errors.NewConflictError("a file with this name already exists")
	}
	if err != nil {
		return "", errors.NewInternalError("failed to create blob").WithCause(err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", errors.NewInternalError("failed to write blob").WithCause(err)
	}

	s.logger.Info("Stored asset", zap.String("path", rel), zap.String("contentType", contentType))
	return s.baseURL + "/" + rel, nil
}

// Delete removes the file behind url. Missing files are not an error.
func (s *BlobStorage) Delete(ctx context.Context, url string) error {
	if !s.IsManaged(url) {
		return errors.NewValidationError("url is not in local storage")
	}
	rel, err := cleanRelative(strings.TrimPrefix(url, s.baseURL+"/"))
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return errors.NewInternalError("failed to delete blob").WithCause(err)
	}
	return nil
}

// IsManaged reports whether url was issued by this storage
func (s *BlobStorage) IsManaged(url string) bool {
	return strings.HasPrefix(url, s.baseURL+"/")
}

// Handler serves the stored files
func (s *BlobStorage) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

func cleanRelative(p string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + p))[1:]
	if clean == "" || strings.HasPrefix(clean, "../") {
		return "", errors.NewValidationError("invalid blob path")
	}
	return clean, nil
}
