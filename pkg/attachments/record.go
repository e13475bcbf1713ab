package attachments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StorageIdentifiers is the opaque pointer to stored bytes returned at upload
// time. It is all a Store needs to rehydrate a live file accessor later, which
// lets callers persist it to external metadata stores alongside the record.
type StorageIdentifiers struct {
	Driver string `json:"driver" bson:"driver"`
	Key    string `json:"key" bson:"key"`
}

// FileRecord is content-addressable file metadata. One record exists per
// distinct content checksum; any number of notifications may reference it.
type FileRecord struct {
	ID          uuid.UUID          `json:"id" bson:"_id"`
	Filename    string             `json:"filename" bson:"filename"`
	ContentType string             `json:"content_type" bson:"content_type"`
	Size        int64              `json:"size" bson:"size"`
	Checksum    string             `json:"checksum" bson:"checksum"` // hex-encoded SHA-256
	Storage     StorageIdentifiers `json:"storage" bson:"storage"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// StoredAttachment joins a FileRecord with notification-specific metadata.
// Many attachments may point at one physical file.
type StoredAttachment struct {
	ID             uuid.UUID  `json:"id" bson:"_id"`
	NotificationID uuid.UUID  `json:"notification_id" bson:"notification_id"`
	File           FileRecord `json:"file" bson:"file"`
	Description    string     `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

// MetadataStore persists attachment metadata. Notification backends that
// support attachments implement this interface; the pipeline detects the
// capability with a type assertion rather than runtime method probing.
type MetadataStore interface {
	// StoreAttachmentFile persists a new file record.
	StoreAttachmentFile(ctx context.Context, rec FileRecord) error

	// GetAttachmentFile returns the record with the given id, or ErrFileNotFound.
	GetAttachmentFile(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// FindAttachmentFileByChecksum returns the record holding content with the
	// given checksum, or ErrFileNotFound when no such content has been stored.
	FindAttachmentFileByChecksum(ctx context.Context, checksum string) (*FileRecord, error)

	// DeleteAttachmentFile removes a file record. Implementations must refuse
	// with ErrFileInUse while any notification attachment references it.
	DeleteAttachmentFile(ctx context.Context, id uuid.UUID) error

	// ListOrphanedAttachmentFiles returns records no notification references.
	// Reference counting is the store's responsibility (e.g. a join query).
	ListOrphanedAttachmentFiles(ctx context.Context) ([]FileRecord, error)

	// StoreNotificationAttachment persists the notification-to-file relation.
	StoreNotificationAttachment(ctx context.Context, att StoredAttachment) error

	// GetAttachments returns all attachments of a notification.
	GetAttachments(ctx context.Context, notificationID uuid.UUID) ([]StoredAttachment, error)

	// DeleteNotificationAttachment removes a single notification-to-file
	// relation, leaving the file record itself in place.
	DeleteNotificationAttachment(ctx context.Context, id uuid.UUID) error
}
