package notifications

import (
	"context"

	"github.com/google/uuid"
)

// Adapter renders and delivers notifications of a single channel. One adapter
// instance is registered per channel implementation; several adapters may
// serve the same Type, and the pipeline isolates their failures from each
// other.
type Adapter interface {
	// Key identifies the adapter. Stored on the notification after a
	// successful send.
	Key() string

	// NotificationType is the channel this adapter serves.
	NotificationType() Type

	// EnqueueNotifications reports whether this adapter's deliveries go
	// through the queue service for asynchronous/distributed sending instead
	// of being invoked inline.
	EnqueueNotifications() bool

	// SupportsAttachments reports whether the adapter can carry file
	// attachments.
	SupportsAttachments() bool

	// Send renders and delivers the notification with the resolved context.
	Send(ctx context.Context, n Notification, renderContext Context) error
}

// QueueService accepts notification ids for asynchronous delivery. A worker
// on some process dequeues ids and hands them to Pipeline.DelayedSend. The
// queue itself is an external system consumed through this interface.
type QueueService interface {
	EnqueueNotification(ctx context.Context, id uuid.UUID) error
}
