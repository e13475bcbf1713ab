// Package postgres persists notifications and attachment metadata in
// PostgreSQL using pgx/v5, with embedded goose migrations.
//
// The backend implements both notifications.Backend and
// attachments.MetadataStore, so a pipeline built on it is attachment-capable.
// Status transitions are conditional UPDATE statements filtered on the
// expected status; the unique index on the attachment file checksum resolves
// the content dedup race at the constraint level.
//
//	pool, err := postgres.Connect(ctx, cfg)
//	if err != nil {
//	    // handle connection error
//	}
//	defer pool.Close()
//
//	if err := postgres.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    // handle migration error
//	}
//	backend := postgres.NewBackend(pool)
package postgres
