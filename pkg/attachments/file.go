package attachments

import (
	"context"
	"errors"
	"io"
)

// File is a live accessor over stored attachment bytes. It is produced by
// Store.File or Store.Reconstruct and remains valid as long as the underlying
// content exists.
type File struct {
	driver Driver
	key    string
}

// Read returns the full content as a byte buffer.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	rc, err := f.Stream(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadBytes, err)
	}
	return data, nil
}

// Stream returns a reader over the content. The caller closes it.
func (f *File) Stream(ctx context.Context) (io.ReadCloser, error) {
	rc, err := f.driver.Open(ctx, f.key)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadBytes, err)
	}
	return rc, nil
}

// URL returns a public URL for the content, or "" when the driver cannot
// serve it directly.
func (f *File) URL() string {
	return f.driver.URL(f.key)
}

// Delete removes the content. The caller is responsible for removing the
// metadata record as well; Store.DeleteFile does both.
func (f *File) Delete(ctx context.Context) error {
	if err := f.driver.Delete(ctx, f.key); err != nil {
		return errors.Join(ErrFailedToDeleteBytes, err)
	}
	return nil
}
