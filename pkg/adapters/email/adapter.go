package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
	"github.com/vintasoftware/vintasend-go/pkg/notifications"
)

// AddressResolver maps an account-bound recipient's user id to an email
// address. One-off recipients carry their address inline and bypass it.
type AddressResolver func(ctx context.Context, userID string) (string, error)

// Adapter delivers email notifications through a Sender. It implements
// notifications.Adapter.
type Adapter struct {
	sender   Sender
	renderer Renderer
	resolver AddressResolver
	store    *attachments.Store
	key      string
	enqueue  bool
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithKey overrides the adapter key. Useful when several email adapters are
// registered on the same pipeline.
func WithKey(key string) AdapterOption {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}

// WithRenderer replaces the default Go-template renderer.
func WithRenderer(r Renderer) AdapterOption {
	return func(a *Adapter) {
		if r != nil {
			a.renderer = r
		}
	}
}

// WithAddressResolver enables delivery to account-bound recipients.
func WithAddressResolver(resolver AddressResolver) AdapterOption {
	return func(a *Adapter) { a.resolver = resolver }
}

// WithAttachmentStore makes the adapter load and attach the notification's
// stored files.
func WithAttachmentStore(store *attachments.Store) AdapterOption {
	return func(a *Adapter) { a.store = store }
}

// WithEnqueue routes this adapter's deliveries through the pipeline's queue
// service instead of sending inline.
func WithEnqueue(enqueue bool) AdapterOption {
	return func(a *Adapter) { a.enqueue = enqueue }
}

// NewAdapter creates an email delivery adapter over the given sender.
func NewAdapter(sender Sender, opts ...AdapterOption) (*Adapter, error) {
	if sender == nil {
		return nil, ErrSenderNil
	}

	a := &Adapter{
		sender:   sender,
		renderer: TemplateRenderer{},
		key:      "email",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) Key() string                          { return a.key }
func (a *Adapter) NotificationType() notifications.Type { return notifications.TypeEmail }
func (a *Adapter) EnqueueNotifications() bool           { return a.enqueue }
func (a *Adapter) SupportsAttachments() bool            { return a.store != nil }

// Send renders the notification and delivers it to the recipient's address.
func (a *Adapter) Send(ctx context.Context, n notifications.Notification, renderContext notifications.Context) error {
	address, err := a.recipientAddress(ctx, n.Recipient)
	if err != nil {
		return err
	}

	subject, body, err := a.renderer.Render(n, renderContext)
	if err != nil {
		return err
	}

	params := SendEmailParams{
		SendTo:   address,
		Subject:  subject,
		BodyHTML: body,
		Tag:      n.ContextName,
	}

	if a.store != nil {
		files, err := a.loadAttachments(ctx, n)
		if err != nil {
			return err
		}
		params.Attachments = files
	}

	if err := a.sender.SendEmail(ctx, params); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

func (a *Adapter) recipientAddress(ctx context.Context, r notifications.Recipient) (string, error) {
	switch r.Kind {
	case notifications.RecipientOneOff:
		if r.EmailOrPhone == "" {
			return "", ErrNoRecipientAddress
		}
		return r.EmailOrPhone, nil
	case notifications.RecipientAccount:
		if a.resolver == nil {
			return "", ErrResolverMissing
		}
		address, err := a.resolver(ctx, r.UserID)
		if err != nil {
			return "", fmt.Errorf("%w: user %s: %v", ErrNoRecipientAddress, r.UserID, err)
		}
		if address == "" {
			return "", fmt.Errorf("%w: user %s", ErrNoRecipientAddress, r.UserID)
		}
		return address, nil
	default:
		return "", notifications.ErrInvalidRecipient
	}
}

func (a *Adapter) loadAttachments(ctx context.Context, n notifications.Notification) ([]Attachment, error) {
	stored, err := a.store.GetAttachments(ctx, n.ID)
	if err != nil {
		return nil, err
	}

	result := make([]Attachment, 0, len(stored))
	for _, att := range stored {
		file, err := a.store.File(att.File)
		if err != nil {
			return nil, err
		}
		data, err := file.Read(ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, Attachment{
			Name:        att.File.Filename,
			Content:     data,
			ContentType: att.File.ContentType,
		})
	}
	return result, nil
}
