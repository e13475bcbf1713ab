package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

// fileDoc is the persisted shape of an attachment file record.
type fileDoc struct {
	ID          string    `bson:"_id"`
	Filename    string    `bson:"filename"`
	ContentType string    `bson:"content_type"`
	Size        int64     `bson:"size"`
	Checksum    string    `bson:"checksum"`
	Driver      string    `bson:"driver"`
	Key         string    `bson:"key"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newFileDoc(rec attachments.FileRecord) fileDoc {
	return fileDoc{
		ID:          rec.ID.String(),
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		Checksum:    rec.Checksum,
		Driver:      rec.Storage.Driver,
		Key:         rec.Storage.Key,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (d fileDoc) toDomain() (attachments.FileRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return attachments.FileRecord{}, fmt.Errorf("malformed file id %q: %w", d.ID, err)
	}
	return attachments.FileRecord{
		ID:          id,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		Checksum:    d.Checksum,
		Storage:     attachments.StorageIdentifiers{Driver: d.Driver, Key: d.Key},
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// attachmentDoc is the persisted notification-to-file relation.
type attachmentDoc struct {
	ID             string    `bson:"_id"`
	NotificationID string    `bson:"notification_id"`
	FileID         string    `bson:"file_id"`
	Description    string    `bson:"description,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (b *Backend) StoreAttachmentFile(ctx context.Context, rec attachments.FileRecord) error {
	if _, err := b.files.InsertOne(ctx, newFileDoc(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Unique checksum index: identical content was stored concurrently.
			return fmt.Errorf("%w: %s: %v", attachments.ErrDuplicateChecksum, rec.Checksum, err)
		}
		return fmt.Errorf("store attachment file: %w", err)
	}
	return nil
}

func (b *Backend) GetAttachmentFile(ctx context.Context, id uuid.UUID) (*attachments.FileRecord, error) {
	var doc fileDoc
	err := b.files.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", attachments.ErrFileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment file: %w", err)
	}

	rec, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *Backend) FindAttachmentFileByChecksum(ctx context.Context, checksum string) (*attachments.FileRecord, error) {
	var doc fileDoc
	err := b.files.FindOne(ctx, bson.M{"checksum": checksum}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: checksum %s", attachments.ErrFileNotFound, checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("find attachment file: %w", err)
	}

	rec, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *Backend) DeleteAttachmentFile(ctx context.Context, id uuid.UUID) error {
	refs, err := b.attachments.CountDocuments(ctx, bson.M{"file_id": id.String()})
	if err != nil {
		return fmt.Errorf("count file references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: %s", attachments.ErrFileInUse, id)
	}

	res, err := b.files.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete attachment file: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", attachments.ErrFileNotFound, id)
	}
	return nil
}

func (b *Backend) ListOrphanedAttachmentFiles(ctx context.Context) ([]attachments.FileRecord, error) {
	var ids []string
	if err := b.attachments.Distinct(ctx, "file_id", bson.M{}).Decode(&ids); err != nil {
		return nil, fmt.Errorf("list referenced files: %w", err)
	}

	cur, err := b.files.Find(ctx, bson.M{"_id": bson.M{"$nin": ids}})
	if err != nil {
		return nil, fmt.Errorf("list orphaned files: %w", err)
	}
	defer cur.Close(ctx)

	var result []attachments.FileRecord
	for cur.Next(ctx) {
		var doc fileDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode file record: %w", err)
		}
		rec, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, cur.Err()
}

func (b *Backend) StoreNotificationAttachment(ctx context.Context, att attachments.StoredAttachment) error {
	count, err := b.files.CountDocuments(ctx, bson.M{"_id": att.File.ID.String()})
	if err != nil {
		return fmt.Errorf("check attachment file: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", attachments.ErrFileNotFound, att.File.ID)
	}

	doc := attachmentDoc{
		ID:             att.ID.String(),
		NotificationID: att.NotificationID.String(),
		FileID:         att.File.ID.String(),
		Description:    att.Description,
		CreatedAt:      att.CreatedAt,
	}
	if _, err := b.attachments.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store notification attachment: %w", err)
	}
	return nil
}

func (b *Backend) GetAttachments(ctx context.Context, notificationID uuid.UUID) ([]attachments.StoredAttachment, error) {
	cur, err := b.attachments.Find(ctx, bson.M{"notification_id": notificationID.String()})
	if err != nil {
		return nil, fmt.Errorf("list notification attachments: %w", err)
	}
	defer cur.Close(ctx)

	var result []attachments.StoredAttachment
	for cur.Next(ctx) {
		var doc attachmentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode notification attachment: %w", err)
		}

		attID, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("malformed attachment id %q: %w", doc.ID, err)
		}
		fileID, err := uuid.Parse(doc.FileID)
		if err != nil {
			return nil, fmt.Errorf("malformed file id %q: %w", doc.FileID, err)
		}

		rec, err := b.GetAttachmentFile(ctx, fileID)
		if err != nil {
			return nil, err
		}

		result = append(result, attachments.StoredAttachment{
			ID:             attID,
			NotificationID: notificationID,
			File:           *rec,
			Description:    doc.Description,
			CreatedAt:      doc.CreatedAt,
		})
	}
	return result, cur.Err()
}

func (b *Backend) DeleteNotificationAttachment(ctx context.Context, id uuid.UUID) error {
	res, err := b.attachments.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete notification attachment: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", attachments.ErrAttachmentNotFound, id)
	}
	return nil
}
