package supabase

import (
	"context"
	"io"
	"path"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"

	"mindo/pkg/errors"
)

// objectStore is the subset of the storage client used here
type objectStore interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// BlobStorage implements ports.BlobStorage on a public Supabase bucket
type BlobStorage struct {
	store  objectStore
	bucket string
	logger *zap.Logger
}

// NewBlobStorage creates blob storage over bucket
func NewBlobStorage(store objectStore, bucket string, logger *zap.Logger) *BlobStorage {
	return &BlobStorage{store: store, bucket: bucket, logger: logger}
}

// Upload stores r under folder/name without overwriting and returns the public URL
func (s *BlobStorage) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	objectPath := path.Join(folder, name)
	upsert := false
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := s.store.UploadFile(s.bucket, objectPath, r, opts); err != nil {
		return "", errors.NewExternalError("storage", err)
	}

	url := s.store.GetPublicUrl(s.bucket, objectPath).SignedURL
	s.logger.Info("Uploaded asset",
		zap.String("bucket", s.bucket),
		zap.String("path", objectPath),
		zap.String("contentType", contentType))
	return url, nil
}

// Delete removes the object behind a public URL of this bucket
func (s *BlobStorage) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectPath, ok := s.objectPath(url)
	if !ok {
		return errors.NewValidationError("url is not in the storage bucket")
	}
	if _, err := s.store.RemoveFile(s.bucket, []string{objectPath}); err != nil {
		return errors.NewExternalError("storage", err)
	}
	return nil
}

// IsManaged reports whether url points into the bucket
func (s *BlobStorage) IsManaged(url string) bool {
	_, ok := s.objectPath(url)
	return ok
}

func (s *BlobStorage) objectPath(url string) (string, bool) {
	marker := "/" + s.bucket + "/"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", false
	}
	p := url[i+len(marker):]
	if q := strings.IndexAny(p, "?#"); q >= 0 {
		p = p[:q]
	}
	return p, p != ""
}
