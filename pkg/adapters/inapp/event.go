package inapp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the live-push payload emitted when an in-app notification is
// delivered. The persisted notification record in the backend is the source
// of truth; events only wake up connected clients.
type Event struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Publisher pushes delivery events to connected clients. Publishing is best
// effort: a failed or dropped push never fails the delivery, because the
// recipient still finds the notification in their inbox listing.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
