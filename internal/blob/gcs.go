package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore stores assets in a single Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore wraps an existing storage client around one bucket.
func NewGCSStore(client *storage.Client, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must be provided to create a GCS store")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Put writes content to a GCS object only if it doesn't already exist.
func (s *GCSStore) Put(ctx context.Context, objectPath, contentType string, content []byte) error {
	writer := s.client.Bucket(s.bucket).Object(objectPath).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists. Skipping write.", "gcsObject", objectPath)
			return nil // Not a failure in an idempotent workflow.
		}
		return fmt.Errorf("failed to write to GCS object %s: %w", objectPath, err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists. Skipping write.", "gcsObject", objectPath)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write for %s: %w", objectPath, err)
	}
	return nil
}

// SignedUploadURL returns a V4 signed URL the client can PUT the asset
// to. The client must send the same Content-Type it declared here.
func (s *GCSStore) SignedUploadURL(ctx context.Context, objectPath, contentType string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	url, err := s.client.Bucket(s.bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     expiresAt,
		ContentType: contentType,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign upload URL for %s: %w", objectPath, err)
	}
	return url, expiresAt, nil
}

// Delete removes the object behind url. Objects that are already gone
// are treated as deleted.
func (s *GCSStore) Delete(ctx context.Context, url string) error {
	objectPath, err := s.objectPathFromURL(url)
	if err != nil {
		return err
	}
	err = s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", objectPath, err)
	}
	return nil
}

// URL returns the public HTTPS URL for an object path.
func (s *GCSStore) URL(objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectPath)
}

// URI returns the gs:// URI for an object path, the form Vertex AI
// accepts as a file part.
func (s *GCSStore) URI(objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectPath)
}

// objectPathFromURL accepts both the public HTTPS form and the gs://
// form and returns the bucket-relative object path.
func (s *GCSStore) objectPathFromURL(url string) (string, error) {
	for _, prefix := range []string{
		fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket),
		fmt.Sprintf("gs://%s/", s.bucket),
	} {
		if strings.HasPrefix(url, prefix) {
			objectPath := strings.TrimPrefix(url, prefix)
			if objectPath == "" {
				return "", fmt.Errorf("%w: %s", ErrNotManaged, url)
			}
			return objectPath, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotManaged, url)
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
