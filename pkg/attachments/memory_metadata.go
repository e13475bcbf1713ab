package attachments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryMetadataStore is an in-memory implementation of MetadataStore.
// Suitable for development and testing. Like the database-backed stores it
// rejects a second file record with an already stored checksum, since records
// sharing a checksum would share one object key.
type MemoryMetadataStore struct {
	mu          sync.RWMutex
	files       map[uuid.UUID]FileRecord
	attachments map[uuid.UUID]StoredAttachment
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		files:       make(map[uuid.UUID]FileRecord),
		attachments: make(map[uuid.UUID]StoredAttachment),
	}
}

func (s *MemoryMetadataStore) StoreAttachmentFile(ctx context.Context, rec FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.files {
		if existing.Checksum == rec.Checksum && id != rec.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateChecksum, rec.Checksum)
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()

	s.files[rec.ID] = rec
	return nil
}

func (s *MemoryMetadataStore) GetAttachmentFile(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return &rec, nil
}

func (s *MemoryMetadataStore) FindAttachmentFileByChecksum(ctx context.Context, checksum string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.files {
		if rec.Checksum == checksum {
			found := rec
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: checksum %s", ErrFileNotFound, checksum)
}

func (s *MemoryMetadataStore) DeleteAttachmentFile(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	for _, att := range s.attachments {
		if att.File.ID == id {
			return fmt.Errorf("%w: %s", ErrFileInUse, id)
		}
	}

	delete(s.files, id)
	return nil
}

func (s *MemoryMetadataStore) ListOrphanedAttachmentFiles(ctx context.Context) ([]FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	referenced := make(map[uuid.UUID]bool, len(s.attachments))
	for _, att := range s.attachments {
		referenced[att.File.ID] = true
	}

	var orphans []FileRecord
	for id, rec := range s.files {
		if !referenced[id] {
			orphans = append(orphans, rec)
		}
	}
	return orphans, nil
}

func (s *MemoryMetadataStore) StoreNotificationAttachment(ctx context.Context, att StoredAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if att.ID == uuid.Nil {
		att.ID = uuid.New()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now()
	}

	if _, ok := s.files[att.File.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, att.File.ID)
	}

	s.attachments[att.ID] = att
	return nil
}

func (s *MemoryMetadataStore) GetAttachments(ctx context.Context, notificationID uuid.UUID) ([]StoredAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []StoredAttachment
	for _, att := range s.attachments {
		if att.NotificationID == notificationID {
			result = append(result, att)
		}
	}
	return result, nil
}

func (s *MemoryMetadataStore) DeleteNotificationAttachment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attachments[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAttachmentNotFound, id)
	}
	delete(s.attachments, id)
	return nil
}
