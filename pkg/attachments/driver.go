package attachments

import (
	"context"
	"io"
)

// Driver stores and retrieves raw attachment bytes under opaque keys.
// Metadata (filenames, checksums, references) never reaches the driver;
// it only sees content.
type Driver interface {
	// Name identifies the driver inside StorageIdentifiers (e.g. "local", "s3").
	Name() string

	// Put stores data under key, overwriting any existing content.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a stream over the content stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content stored under key.
	Delete(ctx context.Context, key string) error

	// URL returns a public URL for the content, or "" when the driver cannot
	// serve content directly.
	URL(key string) string
}
