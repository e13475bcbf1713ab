package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vintasoftware/vintasend-go/pkg/notifications"
)

// Backend is a PostgreSQL implementation of notifications.Backend. It also
// implements attachments.MetadataStore, making it attachment-capable.
//
// Status transitions are single conditional UPDATE statements filtered on the
// expected status, so concurrent senders cannot double-transition a record.
type Backend struct {
	pool *pgxpool.Pool
}

// NewBackend creates a backend over an established connection pool. Run
// Migrate before first use.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// dbConn is the subset of pgxpool.Pool and pgx.Tx the backend queries need.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const notificationColumns = `id, recipient_kind,
	COALESCE(recipient_user_id, ''), COALESCE(recipient_email_or_phone, ''),
	COALESCE(recipient_first_name, ''), COALESCE(recipient_last_name, ''),
	notification_type, title, body_template, COALESCE(subject_template, ''),
	context_name, context_parameters, context_used, send_after, status,
	COALESCE(adapter_used, ''), extra_params, sent_at, read_at, created_at, updated_at`

func scanNotification(row pgx.Row) (*notifications.Notification, error) {
	var (
		n            notifications.Notification
		id           string
		kind, ntype  string
		status       string
		params, used []byte
		extra        []byte
	)

	err := row.Scan(&id, &kind,
		&n.Recipient.UserID, &n.Recipient.EmailOrPhone,
		&n.Recipient.FirstName, &n.Recipient.LastName,
		&ntype, &n.Title, &n.BodyTemplate, &n.SubjectTemplate,
		&n.ContextName, &params, &used, &n.SendAfter, &status,
		&n.AdapterUsed, &extra, &n.SentAt, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("malformed notification id %q: %w", id, err)
	}
	n.Recipient.Kind = notifications.RecipientKind(kind)
	n.Type = notifications.Type(ntype)
	n.Status = notifications.Status(status)

	if n.ContextParameters, err = unmarshalMap(params); err != nil {
		return nil, err
	}
	usedMap, err := unmarshalMap(used)
	if err != nil {
		return nil, err
	}
	if usedMap != nil {
		n.ContextUsed = notifications.Context(usedMap)
	}
	if n.ExtraParams, err = unmarshalMap(extra); err != nil {
		return nil, err
	}
	return &n, nil
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return m, nil
}

func (b *Backend) Persist(ctx context.Context, n notifications.Notification) (*notifications.Notification, error) {
	if n.IsPersisted() {
		return nil, notifications.ErrAlreadyPersisted
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	n.ID = uuid.New()
	if n.Status == "" {
		n.Status = notifications.StatusPendingSend
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	if err := b.insert(ctx, b.pool, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	return &n, nil
}

func (b *Backend) insert(ctx context.Context, conn dbConn, n notifications.Notification) error {
	params, err := marshalMap(n.ContextParameters)
	if err != nil {
		return err
	}
	used, err := marshalMap(map[string]any(n.ContextUsed))
	if err != nil {
		return err
	}
	extra, err := marshalMap(n.ExtraParams)
	if err != nil {
		return err
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO notifications (
			id, recipient_kind, recipient_user_id, recipient_email_or_phone,
			recipient_first_name, recipient_last_name, notification_type,
			title, body_template, subject_template, context_name,
			context_parameters, context_used, send_after, status,
			adapter_used, extra_params, sent_at, read_at, created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			$7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15,
			NULLIF($16, ''), $17, $18, $19, $20, $21
		)`,
		n.ID.String(), string(n.Recipient.Kind), n.Recipient.UserID, n.Recipient.EmailOrPhone,
		n.Recipient.FirstName, n.Recipient.LastName, string(n.Type),
		n.Title, n.BodyTemplate, n.SubjectTemplate, n.ContextName,
		params, used, n.SendAfter, string(n.Status),
		n.AdapterUsed, extra, n.SentAt, n.ReadAt, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (b *Backend) PersistUpdate(ctx context.Context, n notifications.Notification) (*notifications.Notification, error) {
	params, err := marshalMap(n.ContextParameters)
	if err != nil {
		return nil, err
	}
	extra, err := marshalMap(n.ExtraParams)
	if err != nil {
		return nil, err
	}

	tag, err := b.pool.Exec(ctx, `
		UPDATE notifications SET
			recipient_kind = $2,
			recipient_user_id = NULLIF($3, ''),
			recipient_email_or_phone = NULLIF($4, ''),
			recipient_first_name = NULLIF($5, ''),
			recipient_last_name = NULLIF($6, ''),
			notification_type = $7,
			title = $8,
			body_template = $9,
			subject_template = NULLIF($10, ''),
			context_name = $11,
			context_parameters = $12,
			send_after = $13,
			extra_params = $14,
			updated_at = now()
		WHERE id = $1 AND status = $15`,
		n.ID.String(), string(n.Recipient.Kind), n.Recipient.UserID, n.Recipient.EmailOrPhone,
		n.Recipient.FirstName, n.Recipient.LastName, string(n.Type),
		n.Title, n.BodyTemplate, n.SubjectTemplate, n.ContextName,
		params, n.SendAfter, extra, string(notifications.StatusPendingSend),
	)
	if err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, b.missingOrWrongState(ctx, n.ID, notifications.StatusPendingSend)
	}
	return b.Get(ctx, n.ID, false)
}

func (b *Backend) MarkSent(ctx context.Context, id uuid.UUID, checkIsPending bool) error {
	return b.transition(ctx, id, notifications.StatusSent, checkIsPending, notifications.StatusPendingSend, "sent_at")
}

func (b *Backend) MarkFailed(ctx context.Context, id uuid.UUID, checkIsPending bool) error {
	return b.transition(ctx, id, notifications.StatusFailed, checkIsPending, notifications.StatusPendingSend, "")
}

func (b *Backend) MarkRead(ctx context.Context, id uuid.UUID, checkIsSent bool) error {
	return b.transition(ctx, id, notifications.StatusRead, checkIsSent, notifications.StatusSent, "read_at")
}

func (b *Backend) Cancel(ctx context.Context, id uuid.UUID) error {
	return b.transition(ctx, id, notifications.StatusCancelled, true, notifications.StatusPendingSend, "")
}

// transition runs one conditional UPDATE. The status filter makes it atomic
// under concurrent senders.
func (b *Backend) transition(ctx context.Context, id uuid.UUID, next notifications.Status, check bool, expected notifications.Status, stampColumn string) error {
	query := `UPDATE notifications SET status = $2, updated_at = now()`
	if stampColumn != "" {
		query += `, ` + stampColumn + ` = now()`
	}
	query += ` WHERE id = $1`
	args := []any{id.String(), string(next)}
	if check {
		query += ` AND status = $3`
		args = append(args, string(expected))
	}

	tag, err := b.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", next, err)
	}
	if tag.RowsAffected() == 0 {
		return b.missingOrWrongState(ctx, id, expected)
	}
	return nil
}

// missingOrWrongState disambiguates a zero-row conditional update.
func (b *Backend) missingOrWrongState(ctx context.Context, id uuid.UUID, expected notifications.Status) error {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id.String(),
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", notifications.ErrNotificationNotFound, id)
	}
	if expected == notifications.StatusSent {
		return fmt.Errorf("%w: %s", notifications.ErrNotSent, id)
	}
	return fmt.Errorf("%w: %s", notifications.ErrNotPending, id)
}

// Get returns the notification with the given id. With forUpdate the row is
// locked for the duration of the surrounding transaction; outside one the
// lock releases immediately.
func (b *Backend) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*notifications.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	n, err := scanNotification(b.pool.QueryRow(ctx, query, id.String()))
	if IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", notifications.ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (b *Backend) ListPending(ctx context.Context) ([]notifications.Notification, error) {
	return b.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND (send_after IS NULL OR send_after <= now())
		ORDER BY created_at, id`,
		string(notifications.StatusPendingSend))
}

func (b *Backend) ListPendingForUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	return b.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND (send_after IS NULL OR send_after <= now())
			AND recipient_kind = $2 AND recipient_user_id = $3
		ORDER BY created_at, id`,
		string(notifications.StatusPendingSend), string(notifications.RecipientAccount), userID)
}

func (b *Backend) ListScheduled(ctx context.Context) ([]notifications.Notification, error) {
	return b.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND send_after > now()
		ORDER BY created_at, id`,
		string(notifications.StatusPendingSend))
}

func (b *Backend) ListScheduledForUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	return b.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND send_after > now()
			AND recipient_kind = $2 AND recipient_user_id = $3
		ORDER BY created_at, id`,
		string(notifications.StatusPendingSend), string(notifications.RecipientAccount), userID)
}

func (b *Backend) ListAll(ctx context.Context, limit, offset int) ([]notifications.Notification, error) {
	if limit <= 0 {
		return nil, notifications.ErrInvalidBatchSize
	}
	return b.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
}

func (b *Backend) StoreContextUsed(ctx context.Context, id uuid.UUID, used notifications.Context) error {
	data, err := marshalMap(map[string]any(used))
	if err != nil {
		return err
	}

	tag, err := b.pool.Exec(ctx,
		`UPDATE notifications SET context_used = $2, updated_at = now() WHERE id = $1`,
		id.String(), data,
	)
	if err != nil {
		return fmt.Errorf("store context used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", notifications.ErrNotificationNotFound, id)
	}
	return nil
}

func (b *Backend) BulkPersist(ctx context.Context, batch []notifications.Notification) ([]notifications.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulk persist: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now()
	stored := make([]notifications.Notification, 0, len(batch))
	for _, n := range batch {
		if n.IsPersisted() {
			return nil, notifications.ErrAlreadyPersisted
		}
		if err := n.Validate(); err != nil {
			return nil, err
		}
		n.ID = uuid.New()
		if n.Status == "" {
			n.Status = notifications.StatusPendingSend
		}
		n.CreatedAt = now
		n.UpdatedAt = now

		if err := b.insert(ctx, tx, n); err != nil {
			return nil, fmt.Errorf("bulk persist: %w", err)
		}
		stored = append(stored, n)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bulk persist: %w", err)
	}
	return stored, nil
}

func (b *Backend) list(ctx context.Context, query string, args ...any) ([]notifications.Notification, error) {
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []notifications.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return result, nil
}
