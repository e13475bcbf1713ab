// Package mongodb persists notifications and attachment metadata in MongoDB.
//
// The backend implements both notifications.Backend and
// attachments.MetadataStore, so a pipeline built on it is attachment-capable.
// Status transitions run as conditional updates filtered on the expected
// status, which keeps them atomic under concurrent senders without
// distributed locks.
//
// Call EnsureIndexes once at startup. Besides the query indexes it creates a
// unique index on the attachment file checksum, which turns the
// lookup-then-insert dedup race into a constraint violation for the losing
// writer instead of a duplicate record.
//
//	db, err := mongodb.ConnectDatabase(ctx, cfg)
//	if err != nil {
//	    // handle connection error
//	}
//	backend := mongodb.NewBackend(db)
//	if err := backend.EnsureIndexes(ctx); err != nil {
//	    // handle index error
//	}
package mongodb
