package objectstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo represents an object stored in the backing store
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ListResult holds the fully drained result of a prefix listing
type ListResult struct {
	Objects []ObjectInfo

	// CommonPrefixes is only populated when a delimiter was supplied
	CommonPrefixes []string
}

// ObjectStore defines the interface for object storage backends
type ObjectStore interface {
	// List returns every object under prefix. When delimiter is non-empty, keys
	// containing the delimiter after the prefix are rolled up into CommonPrefixes.
	// All continuation pages are drained before returning.
	List(ctx context.Context, prefix, delimiter string) (*ListResult, error)

	// Get opens the object for reading. Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put creates or overwrites the object at key
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// Delete removes the object at key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Copy performs a store-side copy from srcKey to dstKey
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Bucket returns the bucket name for logging purposes
	Bucket() string

	// Close cleans up any resources
	Close() error
}
