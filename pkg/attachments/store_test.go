package attachments_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

func newTestStore(t *testing.T) *attachments.Store {
	t.Helper()

	driver, err := attachments.NewLocalDriver(t.TempDir(), "/files/")
	require.NoError(t, err)

	store, err := attachments.NewStore(driver, attachments.NewMemoryMetadataStore())
	require.NoError(t, err)
	return store
}

func TestNewStore_Validation(t *testing.T) {
	driver, err := attachments.NewLocalDriver(t.TempDir(), "")
	require.NoError(t, err)

	_, err = attachments.NewStore(nil, attachments.NewMemoryMetadataStore())
	assert.ErrorIs(t, err, attachments.ErrDriverNil)

	_, err = attachments.NewStore(driver, nil)
	assert.ErrorIs(t, err, attachments.ErrMetadataStoreNil)
}

func TestStore_UploadFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("uploads bytes and returns record", func(t *testing.T) {
		rec, err := store.UploadFile(ctx, attachments.BytesSource([]byte("hello world")), "greeting.txt", "")
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, rec.ID)
		assert.Equal(t, "greeting.txt", rec.Filename)
		assert.Equal(t, int64(11), rec.Size)
		assert.Len(t, rec.Checksum, 64)
		assert.Contains(t, rec.ContentType, "text/plain")
		assert.Equal(t, "local", rec.Storage.Driver)
		assert.NotEmpty(t, rec.Storage.Key)
	})

	t.Run("respects explicit content type", func(t *testing.T) {
		rec, err := store.UploadFile(ctx, attachments.BytesSource([]byte("{}")), "data.bin", "application/json")
		require.NoError(t, err)
		assert.Equal(t, "application/json", rec.ContentType)
	})

	t.Run("reads stream sources", func(t *testing.T) {
		rec, err := store.UploadFile(ctx, attachments.ReaderSource(strings.NewReader("streamed")), "stream.txt", "")
		require.NoError(t, err)
		assert.Equal(t, int64(8), rec.Size)
	})

	t.Run("identical content resolves to the existing record", func(t *testing.T) {
		first, err := store.UploadFile(ctx, attachments.BytesSource([]byte("same bytes")), "a.txt", "")
		require.NoError(t, err)
		second, err := store.UploadFile(ctx, attachments.BytesSource([]byte("same bytes")), "b.txt", "")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "a.txt", second.Filename)
	})

	t.Run("rejects empty filename", func(t *testing.T) {
		_, err := store.UploadFile(ctx, attachments.BytesSource([]byte("x")), "", "")
		assert.ErrorIs(t, err, attachments.ErrEmptyFilename)
	})

	t.Run("rejects nil source", func(t *testing.T) {
		_, err := store.UploadFile(ctx, nil, "x.txt", "")
		assert.ErrorIs(t, err, attachments.ErrNilFileSource)
	})
}

func TestStore_ProcessAttachments(t *testing.T) {
	ctx := context.Background()

	t.Run("upload then identical upload resolves to same record", func(t *testing.T) {
		store := newTestStore(t)
		notifID := uuid.New()

		first, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("identical content"), "a.txt"),
		}, notifID)
		require.NoError(t, err)
		require.Len(t, first.FileRecords, 1)

		second, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("identical content"), "b.txt"),
		}, uuid.New())
		require.NoError(t, err)
		require.Len(t, second.FileRecords, 1)

		// Deduplication contract: same content, same record, filename ignored.
		assert.Equal(t, first.FileRecords[0].ID, second.FileRecords[0].ID)
		assert.Equal(t, "a.txt", second.FileRecords[0].Filename)
	})

	t.Run("reference to existing file resolves to it", func(t *testing.T) {
		store := newTestStore(t)

		rec, err := store.UploadFile(ctx, attachments.BytesSource([]byte("shared")), "shared.txt", "")
		require.NoError(t, err)

		result, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewReference(rec.ID, "reused file"),
		}, uuid.New())
		require.NoError(t, err)
		require.Len(t, result.Attachments, 1)

		assert.Equal(t, rec.ID, result.Attachments[0].File.ID)
		assert.Equal(t, "reused file", result.Attachments[0].Description)
	})

	t.Run("reference to missing file fails", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewReference(uuid.New(), ""),
		}, uuid.New())
		assert.ErrorIs(t, err, attachments.ErrReferencedFileNotFound)
	})

	t.Run("mixed upload and reference", func(t *testing.T) {
		store := newTestStore(t)

		existing, err := store.UploadFile(ctx, attachments.BytesSource([]byte("existing")), "existing.txt", "")
		require.NoError(t, err)

		result, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("fresh upload"), "fresh.txt"),
			attachments.NewReference(existing.ID, ""),
		}, uuid.New())
		require.NoError(t, err)

		require.Len(t, result.FileRecords, 2)
		assert.Equal(t, "fresh.txt", result.FileRecords[0].Filename)
		assert.Equal(t, existing.ID, result.FileRecords[1].ID)
	})

	t.Run("attachments are linked to the notification", func(t *testing.T) {
		store := newTestStore(t)
		notifID := uuid.New()

		_, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("linked"), "linked.txt"),
		}, notifID)
		require.NoError(t, err)

		atts, err := store.GetAttachments(ctx, notifID)
		require.NoError(t, err)
		require.Len(t, atts, 1)
		assert.Equal(t, notifID, atts[0].NotificationID)
	})

	t.Run("invalid input kind", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.ProcessAttachments(ctx, []attachments.Input{{}}, uuid.New())
		assert.ErrorIs(t, err, attachments.ErrInvalidInputKind)
	})
}

// raceMeta simulates a concurrent writer persisting identical content between
// the checksum lookup and the insert: the first lookup misses, the insert
// hits the unique checksum constraint, and the second lookup returns the
// winning record.
type raceMeta struct {
	attachments.MetadataStore
	winner attachments.FileRecord
	looked bool
}

func (m *raceMeta) FindAttachmentFileByChecksum(ctx context.Context, sum string) (*attachments.FileRecord, error) {
	if !m.looked {
		m.looked = true
		return nil, attachments.ErrFileNotFound
	}
	rec := m.winner
	return &rec, nil
}

func (m *raceMeta) StoreAttachmentFile(ctx context.Context, rec attachments.FileRecord) error {
	return fmt.Errorf("%w: %s", attachments.ErrDuplicateChecksum, rec.Checksum)
}

// sharedChecksumMeta reports an extra surviving record for one checksum,
// as a metadata store without the unique constraint could.
type sharedChecksumMeta struct {
	*attachments.MemoryMetadataStore
	survivor *attachments.FileRecord
}

func (m *sharedChecksumMeta) FindAttachmentFileByChecksum(ctx context.Context, sum string) (*attachments.FileRecord, error) {
	if m.survivor != nil && m.survivor.Checksum == sum {
		rec := *m.survivor
		return &rec, nil
	}
	return m.MemoryMetadataStore.FindAttachmentFileByChecksum(ctx, sum)
}

func TestStore_DuplicateChecksum(t *testing.T) {
	ctx := context.Background()

	t.Run("metadata store rejects a second record for stored content", func(t *testing.T) {
		meta := attachments.NewMemoryMetadataStore()

		require.NoError(t, meta.StoreAttachmentFile(ctx, attachments.FileRecord{ID: uuid.New(), Checksum: "abc"}))
		err := meta.StoreAttachmentFile(ctx, attachments.FileRecord{ID: uuid.New(), Checksum: "abc"})
		assert.ErrorIs(t, err, attachments.ErrDuplicateChecksum)
	})

	t.Run("losing a concurrent duplicate upload keeps the winner's bytes", func(t *testing.T) {
		driver, err := attachments.NewLocalDriver(t.TempDir(), "/files/")
		require.NoError(t, err)

		data := []byte("raced bytes")
		digest := sha256.Sum256(data)
		sum := hex.EncodeToString(digest[:])
		winner := attachments.FileRecord{
			ID:       uuid.New(),
			Filename: "winner.txt",
			Checksum: sum,
			Storage:  attachments.StorageIdentifiers{Driver: "local", Key: sum[:2] + "/" + sum},
		}

		store, err := attachments.NewStore(driver, &raceMeta{winner: winner})
		require.NoError(t, err)

		rec, err := store.UploadFile(ctx, attachments.BytesSource(data), "loser.txt", "")
		require.NoError(t, err)
		assert.Equal(t, winner.ID, rec.ID)

		file, err := store.File(*rec)
		require.NoError(t, err)
		got, err := file.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("deleting a record never removes bytes another record addresses", func(t *testing.T) {
		driver, err := attachments.NewLocalDriver(t.TempDir(), "/files/")
		require.NoError(t, err)

		meta := &sharedChecksumMeta{MemoryMetadataStore: attachments.NewMemoryMetadataStore()}
		store, err := attachments.NewStore(driver, meta)
		require.NoError(t, err)

		rec, err := store.UploadFile(ctx, attachments.BytesSource([]byte("still needed")), "doomed.txt", "")
		require.NoError(t, err)

		survivor := *rec
		survivor.ID = uuid.New()
		meta.survivor = &survivor

		require.NoError(t, store.DeleteFile(ctx, rec.ID))

		file, err := store.Reconstruct(rec.Storage)
		require.NoError(t, err)
		got, err := file.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("still needed"), got)
	})
}

func TestStore_FileAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec, err := store.UploadFile(ctx, attachments.BytesSource([]byte("round trip")), "rt.txt", "")
	require.NoError(t, err)

	t.Run("read through accessor", func(t *testing.T) {
		file, err := store.File(*rec)
		require.NoError(t, err)

		data, err := file.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("round trip"), data)
	})

	t.Run("reconstruct from identifiers alone", func(t *testing.T) {
		file, err := store.Reconstruct(rec.Storage)
		require.NoError(t, err)

		rc, err := file.Stream(ctx)
		require.NoError(t, err)
		defer rc.Close()

		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		assert.Equal(t, "round trip", buf.String())
	})

	t.Run("url uses driver base", func(t *testing.T) {
		file, err := store.File(*rec)
		require.NoError(t, err)
		assert.Equal(t, "/files/"+rec.Storage.Key, file.URL())
	})

	t.Run("reconstruct rejects foreign driver", func(t *testing.T) {
		_, err := store.Reconstruct(attachments.StorageIdentifiers{Driver: "s3", Key: "ab/abc"})
		assert.ErrorIs(t, err, attachments.ErrDriverMismatch)
	})
}

func TestStore_Deletion(t *testing.T) {
	ctx := context.Background()

	t.Run("referenced file cannot be deleted", func(t *testing.T) {
		store := newTestStore(t)

		result, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("held"), "held.txt"),
		}, uuid.New())
		require.NoError(t, err)

		err = store.DeleteFile(ctx, result.FileRecords[0].ID)
		assert.ErrorIs(t, err, attachments.ErrFileInUse)
	})

	t.Run("orphaned file is deleted with its bytes", func(t *testing.T) {
		store := newTestStore(t)

		rec, err := store.UploadFile(ctx, attachments.BytesSource([]byte("orphan")), "orphan.txt", "")
		require.NoError(t, err)

		require.NoError(t, store.DeleteFile(ctx, rec.ID))

		_, err = store.GetFile(ctx, rec.ID)
		assert.ErrorIs(t, err, attachments.ErrFileNotFound)

		file, err := store.Reconstruct(rec.Storage)
		require.NoError(t, err)
		_, err = file.Read(ctx)
		assert.ErrorIs(t, err, attachments.ErrFileNotFound)
	})

	t.Run("orphan sweep skips referenced files", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.UploadFile(ctx, attachments.BytesSource([]byte("sweep me")), "orphan.txt", "")
		require.NoError(t, err)

		kept, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("keep me"), "kept.txt"),
		}, uuid.New())
		require.NoError(t, err)

		deleted, err := store.DeleteOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = store.GetFile(ctx, kept.FileRecords[0].ID)
		assert.NoError(t, err)
	})

	t.Run("orphan sweep never strands a live duplicate upload", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.UploadFile(ctx, attachments.BytesSource([]byte("shared content")), "first.txt", "")
		require.NoError(t, err)

		result, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("shared content"), "second.txt"),
		}, uuid.New())
		require.NoError(t, err)

		deleted, err := store.DeleteOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, deleted)

		file, err := store.File(result.FileRecords[0])
		require.NoError(t, err)
		data, err := file.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("shared content"), data)
	})

	t.Run("deleting the attachment relation orphans the file", func(t *testing.T) {
		store := newTestStore(t)

		result, err := store.ProcessAttachments(ctx, []attachments.Input{
			attachments.NewUploadBytes([]byte("soon orphaned"), "x.txt"),
		}, uuid.New())
		require.NoError(t, err)

		require.NoError(t, store.DeleteAttachment(ctx, result.Attachments[0].ID))

		deleted, err := store.DeleteOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})
}
