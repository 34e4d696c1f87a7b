package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FSStore stores assets under a local directory tree. It backs the
// self-hosted deployment, where a reverse proxy in front of the asset
// root handles authentication, so upload URLs are plain unsigned URLs.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore roots a store at dir, creating it if needed. baseURL is
// the public prefix assets are served under.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset root directory must be provided")
	}
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset root %s: %w", dir, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset root %s: %w", absRoot, err)
	}
	return &FSStore{root: absRoot, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put writes content only if nothing is at objectPath yet.
func (s *FSStore) Put(ctx context.Context, objectPath, contentType string, content []byte) error {
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil // Already written by an earlier attempt.
		}
		return fmt.Errorf("failed to create asset file %s: %w", objectPath, err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("failed to write asset file %s: %w", objectPath, err)
	}
	return nil
}

// SignedUploadURL returns the plain asset URL. There is no signature;
// the fronting proxy is responsible for access control.
func (s *FSStore) SignedUploadURL(ctx context.Context, objectPath, contentType string, ttl time.Duration) (string, time.Time, error) {
	if _, err := s.resolve(objectPath); err != nil {
		return "", time.Time{}, err
	}
	return s.URL(objectPath), time.Now().Add(ttl), nil
}

// Delete removes the file behind url. Missing files are treated as
// deleted.
func (s *FSStore) Delete(ctx context.Context, url string) error {
	objectPath, err := s.objectPathFromURL(url)
	if err != nil {
		return err
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset file %s: %w", objectPath, err)
	}
	return nil
}

// URL returns the public URL for an object path.
func (s *FSStore) URL(objectPath string) string {
	return s.baseURL + "/" + objectPath
}

// URI returns the absolute filesystem path for an object path.
func (s *FSStore) URI(objectPath string) string {
	p, err := s.resolve(objectPath)
	if err != nil {
		return ""
	}
	return p
}

func (s *FSStore) objectPathFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return "", fmt.Errorf("%w: %s", ErrNotManaged, url)
	}
	objectPath := strings.TrimPrefix(url, s.baseURL+"/")
	if objectPath == "" {
		return "", fmt.Errorf("%w: %s", ErrNotManaged, url)
	}
	return objectPath, nil
}

// resolve maps an object path to an absolute file path, rejecting
// anything that would escape the asset root.
func (s *FSStore) resolve(objectPath string) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(objectPath))

	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("object path %q escapes the asset root", objectPath)
	}
	return target, nil
}
