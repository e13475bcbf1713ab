package inapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/vintasoftware/vintasend-go/pkg/logger"
	"github.com/vintasoftware/vintasend-go/pkg/notifications"
)

// Adapter delivers in-app notifications. Delivery means the notification is
// marked sent and becomes visible in the recipient's inbox listing; when a
// publisher is configured, connected clients are additionally woken up with a
// live event, best effort.
type Adapter struct {
	publisher Publisher
	logger    *slog.Logger
	key       string
	enqueue   bool
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithKey overrides the adapter key.
func WithKey(key string) AdapterOption {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}

// WithPublisher enables live push of delivery events.
func WithPublisher(p Publisher) AdapterOption {
	return func(a *Adapter) { a.publisher = p }
}

// WithLogger sets the logger used for discarded publish failures.
func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if log != nil {
			a.logger = log
		}
	}
}

// WithEnqueue routes this adapter's deliveries through the pipeline's queue
// service.
func WithEnqueue(enqueue bool) AdapterOption {
	return func(a *Adapter) { a.enqueue = enqueue }
}

// NewAdapter creates an in-app delivery adapter.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		key:    "in-app",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Key() string                          { return a.key }
func (a *Adapter) NotificationType() notifications.Type { return notifications.TypeInApp }
func (a *Adapter) EnqueueNotifications() bool           { return a.enqueue }
func (a *Adapter) SupportsAttachments() bool            { return false }

// Send renders the notification body and, when a publisher is configured,
// pushes a live event to the recipient's open sessions. Publish failures are
// logged and discarded: the persisted record is the delivery, the event only
// accelerates its visibility.
func (a *Adapter) Send(ctx context.Context, n notifications.Notification, renderContext notifications.Context) error {
	if n.Recipient.Kind != notifications.RecipientAccount {
		return fmt.Errorf("%w: got %q", ErrAccountRequired, n.Recipient.Kind)
	}

	body, err := renderBody(n.BodyTemplate, renderContext)
	if err != nil {
		return err
	}

	if a.publisher == nil {
		return nil
	}

	event := Event{
		NotificationID: n.ID,
		UserID:         n.Recipient.UserID,
		Title:          n.Title,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "in-app event publish failed",
			logger.NotificationID(n.ID),
			logger.UserID(n.Recipient.UserID),
			logger.Error(err),
		)
	}
	return nil
}

func renderBody(tmpl string, renderContext notifications.Context) (string, error) {
	t, err := template.New("body").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, map[string]any(renderContext)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return sb.String(), nil
}
