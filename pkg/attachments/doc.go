// Package attachments provides content-addressable storage for notification
// file attachments with checksum-based deduplication.
//
// Content and relationships are modeled separately: a FileRecord describes one
// distinct piece of content (identified by its SHA-256 checksum), while a
// StoredAttachment joins a FileRecord to one notification. Many notifications
// can reference one physical file; bytes for identical content are never
// stored twice.
//
// # Architecture
//
//   - Driver: stores raw bytes under opaque keys (local filesystem, S3)
//   - MetadataStore: persists records and notification relations
//   - Store: orchestrates checksumming, dedup, and upload/reference resolution
//
// # Usage
//
//	driver, _ := attachments.NewLocalDriver("/var/lib/attachments", "/files/")
//	store, _ := attachments.NewStore(driver, attachments.NewMemoryMetadataStore())
//
//	result, err := store.ProcessAttachments(ctx, []attachments.Input{
//	    attachments.NewUploadBytes(report, "report.pdf"),
//	    attachments.NewReference(existingFileID, "last month's report"),
//	}, notificationID)
//
// A record's StorageIdentifiers are all that is needed to get the bytes back,
// even when the metadata lived in an external database:
//
//	file, _ := store.Reconstruct(rec.Storage)
//	data, _ := file.Read(ctx)
//
// # Deduplication race
//
// Dedup uses a checksum lookup followed by an insert. Two concurrent uploads
// of identical content may both miss the lookup and create two records. The
// database-backed metadata stores close this window with a unique index on
// checksum; MemoryMetadataStore does not.
package attachments
