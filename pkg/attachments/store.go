package attachments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vintasoftware/vintasend-go/pkg/logger"
)

// Store is the content-addressable attachment store. It computes checksums,
// deduplicates identical content, delegates byte storage to a Driver and
// metadata persistence to a MetadataStore.
//
// Object keys are derived from the content checksum, so at most one file
// record may exist per checksum: two records sharing a key would make one
// record's deletion erase the other's bytes. Every bundled metadata store
// enforces a unique constraint on checksum and rejects duplicates with
// ErrDuplicateChecksum; the checksum lookup-then-insert race resolves by
// re-reading the winning record on a duplicate insert.
type Store struct {
	driver Driver
	meta   MetadataStore
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for best-effort cleanup warnings.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// NewStore creates an attachment store over the given byte driver and
// metadata store.
func NewStore(driver Driver, meta MetadataStore, opts ...StoreOption) (*Store, error) {
	if driver == nil {
		return nil, ErrDriverNil
	}
	if meta == nil {
		return nil, ErrMetadataStoreNil
	}

	s := &Store{
		driver: driver,
		meta:   meta,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// UploadFile normalizes the source into a byte buffer, computes its SHA-256
// checksum, detects the content type when not supplied, stores the bytes
// through the driver and persists a new file record.
//
// Content is deduplicated by checksum: when a record for identical content
// already exists it is returned as-is, filename and content type included,
// and no bytes are written.
func (s *Store) UploadFile(ctx context.Context, src FileSource, filename, contentType string) (*FileRecord, error) {
	if src == nil {
		return nil, ErrNilFileSource
	}
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	data, err := readSource(src)
	if err != nil {
		return nil, err
	}

	sum := checksum(data)
	existing, err := s.findByChecksum(ctx, sum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if contentType == "" {
		contentType = detectContentType(filename, data)
	}
	return s.storeBytes(ctx, data, filename, contentType, sum)
}

// ProcessResult is the outcome of ProcessAttachments: one stored attachment
// per input, in input order, plus the distinct file records they resolve to.
type ProcessResult struct {
	Attachments []StoredAttachment
	FileRecords []FileRecord
}

// ProcessAttachments resolves a mixed list of uploads and references into
// persisted attachments of the given notification.
//
// References are looked up by id and fail with ErrReferencedFileNotFound when
// absent. Uploads are checksummed before storing; when content with the same
// checksum already exists the existing record is reused and no bytes are
// written, regardless of filename.
func (s *Store) ProcessAttachments(ctx context.Context, inputs []Input, notificationID uuid.UUID) (*ProcessResult, error) {
	result := &ProcessResult{
		Attachments: make([]StoredAttachment, 0, len(inputs)),
		FileRecords: make([]FileRecord, 0, len(inputs)),
	}

	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}

		var (
			rec *FileRecord
			err error
		)
		switch in.Kind {
		case InputReference:
			rec, err = s.meta.GetAttachmentFile(ctx, in.FileID)
			if err != nil {
				if errors.Is(err, ErrFileNotFound) {
					err = fmt.Errorf("%w: %s", ErrReferencedFileNotFound, in.FileID)
				}
				return nil, err
			}
		case InputUpload:
			rec, err = s.resolveUpload(ctx, in)
			if err != nil {
				return nil, err
			}
		}

		att := StoredAttachment{
			ID:             uuid.New(),
			NotificationID: notificationID,
			File:           *rec,
			Description:    in.Description,
			CreatedAt:      time.Now(),
		}
		if err := s.meta.StoreNotificationAttachment(ctx, att); err != nil {
			return nil, err
		}

		result.Attachments = append(result.Attachments, att)
		result.FileRecords = append(result.FileRecords, *rec)
	}

	return result, nil
}

// resolveUpload returns an existing record for already stored content, or
// stores the bytes and creates a new one.
func (s *Store) resolveUpload(ctx context.Context, in Input) (*FileRecord, error) {
	data, err := readSource(in.Source)
	if err != nil {
		return nil, err
	}

	sum := checksum(data)
	existing, err := s.findByChecksum(ctx, sum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = detectContentType(in.Filename, data)
	}
	return s.storeBytes(ctx, data, in.Filename, contentType, sum)
}

func (s *Store) storeBytes(ctx context.Context, data []byte, filename, contentType, sum string) (*FileRecord, error) {
	key := objectKey(sum)
	if err := s.driver.Put(ctx, key, data, contentType); err != nil {
		return nil, errors.Join(ErrFailedToStoreBytes, err)
	}

	now := time.Now()
	rec := FileRecord{
		ID:          uuid.New(),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    sum,
		Storage: StorageIdentifiers{
			Driver: s.driver.Name(),
			Key:    key,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.meta.StoreAttachmentFile(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateChecksum) {
			// Lost a concurrent upload of the same content. The bytes must
			// stay: the winning record addresses the same key.
			existing, findErr := s.meta.FindAttachmentFileByChecksum(ctx, sum)
			if findErr != nil {
				return nil, errors.Join(err, findErr)
			}
			return existing, nil
		}

		// Metadata is the source of truth, and a non-duplicate failure means
		// no record addresses this key. Clean the stored bytes up best-effort.
		if delErr := s.driver.Delete(ctx, key); delErr != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to clean up attachment bytes after metadata failure",
				logger.Checksum(sum),
				logger.Error(delErr),
			)
		}
		return nil, err
	}

	return &rec, nil
}

// findByChecksum looks a record up by content checksum, mapping the
// not-found case to a nil record instead of an error.
func (s *Store) findByChecksum(ctx context.Context, sum string) (*FileRecord, error) {
	rec, err := s.meta.FindAttachmentFileByChecksum(ctx, sum)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// GetFile returns the file record with the given id.
func (s *Store) GetFile(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	return s.meta.GetAttachmentFile(ctx, id)
}

// GetAttachments returns all stored attachments of a notification.
func (s *Store) GetAttachments(ctx context.Context, notificationID uuid.UUID) ([]StoredAttachment, error) {
	return s.meta.GetAttachments(ctx, notificationID)
}

// DeleteAttachment removes a single notification-to-file relation. The file
// record and its bytes stay in place until an orphan sweep collects them.
func (s *Store) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	return s.meta.DeleteNotificationAttachment(ctx, id)
}

// DeleteFile removes an orphaned file record and its bytes. The metadata
// store refuses with ErrFileInUse while any notification references the file.
func (s *Store) DeleteFile(ctx context.Context, id uuid.UUID) error {
	rec, err := s.meta.GetAttachmentFile(ctx, id)
	if err != nil {
		return err
	}

	if err := s.meta.DeleteAttachmentFile(ctx, rec.ID); err != nil {
		return err
	}

	// The object key is derived from the checksum. Delete the bytes only when
	// no surviving record still addresses them.
	other, err := s.findByChecksum(ctx, rec.Checksum)
	if err != nil {
		return err
	}
	if other != nil {
		return nil
	}

	if err := s.driver.Delete(ctx, rec.Storage.Key); err != nil {
		return errors.Join(ErrFailedToDeleteBytes, err)
	}
	return nil
}

// DeleteOrphans removes every file record that no notification references,
// together with its stored bytes. Returns the number of files removed.
func (s *Store) DeleteOrphans(ctx context.Context) (int, error) {
	orphans, err := s.meta.ListOrphanedAttachmentFiles(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range orphans {
		if err := s.DeleteFile(ctx, rec.ID); err != nil {
			// A reference created between listing and deletion is not an error.
			if errors.Is(err, ErrFileInUse) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// File wraps a record into a live accessor backed by this store's driver.
func (s *Store) File(rec FileRecord) (*File, error) {
	return s.Reconstruct(rec.Storage)
}

// Reconstruct produces a live file accessor from opaque storage identifiers
// alone, without any other context. This rehydrates attachments whose
// metadata was persisted externally (e.g. in a database) back into usable
// file handles at read time.
func (s *Store) Reconstruct(ids StorageIdentifiers) (*File, error) {
	if ids.Driver != s.driver.Name() {
		return nil, fmt.Errorf("%w: record has %q, store has %q", ErrDriverMismatch, ids.Driver, s.driver.Name())
	}
	return &File{driver: s.driver, key: ids.Key}, nil
}

func readSource(src FileSource) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, errors.Join(ErrFailedToReadSource, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadSource, err)
	}
	return data, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// objectKey fans content out under the first checksum byte, git-style, to
// keep directory listings manageable on filesystem drivers.
func objectKey(sum string) string {
	return sum[:2] + "/" + sum
}

// detectContentType resolves a content type from the filename extension,
// falling back to content sniffing and finally application/octet-stream.
func detectContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	if ct := http.DetectContentType(data); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
