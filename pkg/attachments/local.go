package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalDriver stores attachment bytes on the local filesystem. All operations
// are confined to baseDir to prevent path traversal.
type LocalDriver struct {
	baseDir string // absolute path, every object lives under it
	baseURL string // URL prefix for serving files, "" disables URL generation
}

// NewLocalDriver creates a filesystem driver rooted at baseDir. The directory
// is created if it does not exist. baseURL is used for generating public URLs
// (e.g. "/files/") and may be empty.
func NewLocalDriver(baseDir, baseURL string) (*LocalDriver, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve base directory: %v", ErrInvalidConfig, err)
	}

	if err := os.MkdirAll(absBaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create base directory: %v", ErrInvalidConfig, err)
	}

	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &LocalDriver{baseDir: absBaseDir, baseURL: baseURL}, nil
}

func (d *LocalDriver) Name() string { return "local" }

func (d *LocalDriver) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := d.resolve(key)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Rename is atomic on the same filesystem, so readers never observe a
	// partially written object.
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

func (d *LocalDriver) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := d.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

func (d *LocalDriver) Delete(ctx context.Context, key string) error {
	path, err := d.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return err
	}

	// Remove empty fanout directories opportunistically; failure is harmless.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (d *LocalDriver) URL(key string) string {
	if d.baseURL == "" {
		return ""
	}
	return d.baseURL + key
}

// resolve joins key with baseDir and rejects keys escaping it.
func (d *LocalDriver) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty object key", ErrInvalidConfig)
	}

	path := filepath.Join(d.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(path, d.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: object key escapes base directory", ErrInvalidConfig)
	}
	return path, nil
}
