// Package blob abstracts the binary object store that holds captured
// photos and extraction audit records. Objects are addressed by a
// bucket-relative object path and exposed to the rest of the system as
// opaque URLs.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotManaged is returned by Delete when the URL does not belong to
// the store's bucket or root.
var ErrNotManaged = errors.New("blob: url not managed by this store")

// Store is the full surface the capture pipeline needs.
type Store interface {
	Signer
	Deleter

	// Put writes content to objectPath only if nothing is there yet.
	// A second Put to the same path is a silent no-op, so retried
	// workflow steps never clobber an earlier write.
	Put(ctx context.Context, objectPath, contentType string, content []byte) error

	// URL returns the stable public URL for an object path.
	URL(objectPath string) string

	// URI returns the provider-native URI for an object path, the form
	// the extraction model is given (gs:// on GCS, an absolute file
	// path on the filesystem store).
	URI(objectPath string) string
}

// Signer issues pre-authorized upload destinations so clients can PUT
// assets without holding storage credentials.
type Signer interface {
	SignedUploadURL(ctx context.Context, objectPath, contentType string, ttl time.Duration) (url string, expiresAt time.Time, err error)
}

// Deleter removes stored objects by their public URL. Deleting an
// object that is already gone is not an error.
type Deleter interface {
	Delete(ctx context.Context, url string) error
}
