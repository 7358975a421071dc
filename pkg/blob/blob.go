// Package blob defines the Store interface for durable audio object storage.
//
// A blob store holds opaque encoded audio objects under caller-chosen keys and
// hands back stable references that the persistence layer records. The primary
// implementation is [github.com/Tavasya/speakdrill/pkg/blob/s3].
//
// Implementations must be safe for concurrent use.
package blob

import (
	"context"
	"time"
)

// Object describes a stored blob.
type Object struct {
	// Key is the store-internal object key.
	Key string

	// Ref is the durable reference handed to the persistence layer. It must
	// stay resolvable for the lifetime of the owning record.
	Ref string

	// Size is the object size in bytes.
	Size int64

	// ContentType is the MIME type recorded at upload time.
	ContentType string
}

// Store is the abstraction over any blob backend.
type Store interface {
	// Put stores data under key with the given content type and returns the
	// durable object descriptor. Keys are caller-chosen; callers are
	// responsible for collision-free naming.
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)

	// Get retrieves the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// PublicURL resolves a stored reference to a browser-reachable URL.
	// Only meaningful when the backing bucket allows public reads; refs from
	// another store are an error.
	PublicURL(ref string) (string, error)

	// SignedURL resolves a stored reference to a time-limited download URL
	// valid for ttl. This is the playback path for private buckets.
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}
