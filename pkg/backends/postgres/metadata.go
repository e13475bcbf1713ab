package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

const fileColumns = `id, filename, content_type, size, checksum,
	storage_driver, storage_key, created_at, updated_at`

func scanFileRecord(row pgx.Row) (*attachments.FileRecord, error) {
	var (
		rec attachments.FileRecord
		id  string
	)
	err := row.Scan(&id, &rec.Filename, &rec.ContentType, &rec.Size, &rec.Checksum,
		&rec.Storage.Driver, &rec.Storage.Key, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("malformed file id %q: %w", id, err)
	}
	return &rec, nil
}

func (b *Backend) StoreAttachmentFile(ctx context.Context, rec attachments.FileRecord) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO attachment_files (
			id, filename, content_type, size, checksum,
			storage_driver, storage_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID.String(), rec.Filename, rec.ContentType, rec.Size, rec.Checksum,
		rec.Storage.Driver, rec.Storage.Key, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if IsDuplicateKeyError(err) {
			// Unique checksum constraint: identical content was stored
			// concurrently by another writer.
			return fmt.Errorf("%w: %s: %v", attachments.ErrDuplicateChecksum, rec.Checksum, err)
		}
		return fmt.Errorf("store attachment file: %w", err)
	}
	return nil
}

func (b *Backend) GetAttachmentFile(ctx context.Context, id uuid.UUID) (*attachments.FileRecord, error) {
	rec, err := scanFileRecord(b.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM attachment_files WHERE id = $1`, id.String()))
	if IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", attachments.ErrFileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment file: %w", err)
	}
	return rec, nil
}

func (b *Backend) FindAttachmentFileByChecksum(ctx context.Context, checksum string) (*attachments.FileRecord, error) {
	rec, err := scanFileRecord(b.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM attachment_files WHERE checksum = $1`, checksum))
	if IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: checksum %s", attachments.ErrFileNotFound, checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("find attachment file: %w", err)
	}
	return rec, nil
}

func (b *Backend) DeleteAttachmentFile(ctx context.Context, id uuid.UUID) error {
	// The reference check and the delete run in one statement so a racing
	// attach cannot slip between them.
	tag, err := b.pool.Exec(ctx, `
		DELETE FROM attachment_files f
		WHERE f.id = $1
			AND NOT EXISTS (
				SELECT 1 FROM notification_attachments a WHERE a.file_id = f.id
			)`, id.String())
	if err != nil {
		return fmt.Errorf("delete attachment file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := b.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM attachment_files WHERE id = $1)`, id.String(),
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", attachments.ErrFileInUse, id)
		}
		return fmt.Errorf("%w: %s", attachments.ErrFileNotFound, id)
	}
	return nil
}

func (b *Backend) ListOrphanedAttachmentFiles(ctx context.Context) ([]attachments.FileRecord, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT `+fileColumns+` FROM attachment_files f
		WHERE NOT EXISTS (
			SELECT 1 FROM notification_attachments a WHERE a.file_id = f.id
		)
		ORDER BY f.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list orphaned files: %w", err)
	}
	defer rows.Close()

	var result []attachments.FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func (b *Backend) StoreNotificationAttachment(ctx context.Context, att attachments.StoredAttachment) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO notification_attachments (id, notification_id, file_id, description, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		att.ID.String(), att.NotificationID.String(), att.File.ID.String(),
		att.Description, att.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolationError(err) {
			return fmt.Errorf("%w: %s", attachments.ErrFileNotFound, att.File.ID)
		}
		return fmt.Errorf("store notification attachment: %w", err)
	}
	return nil
}

func (b *Backend) GetAttachments(ctx context.Context, notificationID uuid.UUID) ([]attachments.StoredAttachment, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT a.id, COALESCE(a.description, ''), a.created_at,
			f.id, f.filename, f.content_type, f.size, f.checksum,
			f.storage_driver, f.storage_key, f.created_at, f.updated_at
		FROM notification_attachments a
		JOIN attachment_files f ON f.id = a.file_id
		WHERE a.notification_id = $1
		ORDER BY a.created_at`, notificationID.String())
	if err != nil {
		return nil, fmt.Errorf("list notification attachments: %w", err)
	}
	defer rows.Close()

	var result []attachments.StoredAttachment
	for rows.Next() {
		var (
			att           attachments.StoredAttachment
			attID, fileID string
		)
		err := rows.Scan(&attID, &att.Description, &att.CreatedAt,
			&fileID, &att.File.Filename, &att.File.ContentType, &att.File.Size,
			&att.File.Checksum, &att.File.Storage.Driver, &att.File.Storage.Key,
			&att.File.CreatedAt, &att.File.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification attachment: %w", err)
		}

		if att.ID, err = uuid.Parse(attID); err != nil {
			return nil, fmt.Errorf("malformed attachment id %q: %w", attID, err)
		}
		if att.File.ID, err = uuid.Parse(fileID); err != nil {
			return nil, fmt.Errorf("malformed file id %q: %w", fileID, err)
		}
		att.NotificationID = notificationID
		result = append(result, att)
	}
	return result, rows.Err()
}

func (b *Backend) DeleteNotificationAttachment(ctx context.Context, id uuid.UUID) error {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM notification_attachments WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete notification attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", attachments.ErrAttachmentNotFound, id)
	}
	return nil
}
