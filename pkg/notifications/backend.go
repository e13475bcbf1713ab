package notifications

import (
	"context"

	"github.com/google/uuid"
)

// Backend persists notification records and enforces status transitions.
//
// Status-mutating calls carry a check flag (checkIsPending, checkIsSent); when
// set, the backend must apply the transition conditionally and atomically
// (e.g. a conditional update) and fail with ErrNotPending / ErrNotSent when
// the record is no longer in the expected state. The pipeline takes no locks
// of its own and relies on this contract for consistency.
type Backend interface {
	// Persist stores a new notification and returns it with identity and
	// timestamps assigned. The input must not carry an id.
	Persist(ctx context.Context, n Notification) (*Notification, error)

	// PersistUpdate applies pre-send edits to a PENDING_SEND notification.
	PersistUpdate(ctx context.Context, n Notification) (*Notification, error)

	// MarkSent transitions the notification to SENT and stamps sentAt.
	MarkSent(ctx context.Context, id uuid.UUID, checkIsPending bool) error

	// MarkFailed transitions the notification to FAILED.
	MarkFailed(ctx context.Context, id uuid.UUID, checkIsPending bool) error

	// MarkRead transitions a SENT notification to READ and stamps readAt.
	MarkRead(ctx context.Context, id uuid.UUID, checkIsSent bool) error

	// Cancel transitions a PENDING_SEND notification to CANCELLED.
	Cancel(ctx context.Context, id uuid.UUID) error

	// Get returns the notification with the given id, or
	// ErrNotificationNotFound. forUpdate asks the backend to lock the row for
	// the duration of the surrounding transaction where supported.
	Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*Notification, error)

	// ListPending returns all PENDING_SEND notifications that are due.
	ListPending(ctx context.Context) ([]Notification, error)

	// ListPendingForUser returns due PENDING_SEND notifications of one user.
	ListPendingForUser(ctx context.Context, userID string) ([]Notification, error)

	// ListScheduled returns PENDING_SEND notifications scheduled in the future.
	ListScheduled(ctx context.Context) ([]Notification, error)

	// ListScheduledForUser returns future-scheduled notifications of one user.
	ListScheduledForUser(ctx context.Context, userID string) ([]Notification, error)

	// ListAll pages through every notification ordered by creation time.
	// Used by backend migration.
	ListAll(ctx context.Context, limit, offset int) ([]Notification, error)

	// StoreContextUsed records the context actually rendered during a send.
	StoreContextUsed(ctx context.Context, id uuid.UUID, used Context) error

	// BulkPersist stores a batch of notifications, assigning fresh identities.
	BulkPersist(ctx context.Context, batch []Notification) ([]Notification, error)
}
