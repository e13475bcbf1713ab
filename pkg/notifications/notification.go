package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

// Type is the delivery channel of a notification.
type Type string

const (
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
	TypeInApp Type = "in-app"
	TypePush  Type = "push"
)

// Status is a notification's lifecycle state.
type Status string

const (
	StatusPendingSend Status = "PENDING_SEND"
	StatusSent        Status = "SENT"
	StatusFailed      Status = "FAILED"
	StatusRead        Status = "READ"
	StatusCancelled   Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingSend, StatusSent, StatusFailed, StatusRead, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// READ and CANCELLED are terminal; nothing re-enters PENDING_SEND. FAILED
// notifications are only retried through Resend, which creates a new record.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPendingSend:
		return next == StatusSent || next == StatusFailed || next == StatusCancelled
	case StatusSent:
		return next == StatusRead
	default:
		return false
	}
}

// RecipientKind discriminates the recipient union.
type RecipientKind string

const (
	// RecipientAccount addresses a registered user by id.
	RecipientAccount RecipientKind = "account"
	// RecipientOneOff addresses someone without an account by email or phone.
	RecipientOneOff RecipientKind = "one-off"
)

// Recipient is the addressing of a notification: either account-bound or
// one-off, never both. The Kind field makes the variant explicit instead of
// discriminating on field presence.
type Recipient struct {
	Kind RecipientKind `json:"kind" bson:"kind"`

	// Account-bound fields
	UserID string `json:"user_id,omitempty" bson:"user_id,omitempty"`

	// One-off fields
	EmailOrPhone string `json:"email_or_phone,omitempty" bson:"email_or_phone,omitempty"`
	FirstName    string `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty" bson:"last_name,omitempty"`
}

// AccountRecipient addresses a registered user.
func AccountRecipient(userID string) Recipient {
	return Recipient{Kind: RecipientAccount, UserID: userID}
}

// OneOffRecipient addresses someone without an account.
func OneOffRecipient(emailOrPhone, firstName, lastName string) Recipient {
	return Recipient{
		Kind:         RecipientOneOff,
		EmailOrPhone: emailOrPhone,
		FirstName:    firstName,
		LastName:     lastName,
	}
}

// Validate enforces the mutual exclusion invariant between the variants.
func (r Recipient) Validate() error {
	switch r.Kind {
	case RecipientAccount:
		if r.UserID == "" {
			return fmt.Errorf("%w: account recipient requires a user id", ErrInvalidRecipient)
		}
		if r.EmailOrPhone != "" {
			return fmt.Errorf("%w: account recipient must not carry an email or phone", ErrInvalidRecipient)
		}
	case RecipientOneOff:
		if r.EmailOrPhone == "" {
			return fmt.Errorf("%w: one-off recipient requires an email or phone", ErrInvalidRecipient)
		}
		if r.UserID != "" {
			return fmt.Errorf("%w: one-off recipient must not carry a user id", ErrInvalidRecipient)
		}
	default:
		return fmt.Errorf("%w: unknown recipient kind %q", ErrInvalidRecipient, r.Kind)
	}
	return nil
}

// Context is the resolved data consumed by content rendering.
type Context map[string]any

// Notification is the central entity of the dispatch pipeline.
//
// ID is uuid.Nil until the backend persists the record; the pipeline refuses
// to send unpersisted notifications. ContextUsed is nil until a successful
// send stores the context actually rendered, enabling idempotent resending.
type Notification struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	Recipient Recipient `json:"recipient" bson:"recipient"`
	Type      Type      `json:"type" bson:"type"`

	Title           string `json:"title" bson:"title"`
	BodyTemplate    string `json:"body_template" bson:"body_template"`
	SubjectTemplate string `json:"subject_template,omitempty" bson:"subject_template,omitempty"`

	ContextName       string         `json:"context_name" bson:"context_name"`
	ContextParameters map[string]any `json:"context_parameters,omitempty" bson:"context_parameters,omitempty"`
	ContextUsed       Context        `json:"context_used,omitempty" bson:"context_used,omitempty"`

	SendAfter   *time.Time `json:"send_after,omitempty" bson:"send_after,omitempty"`
	Status      Status     `json:"status" bson:"status"`
	AdapterUsed string     `json:"adapter_used,omitempty" bson:"adapter_used,omitempty"`

	ExtraParams map[string]any `json:"extra_params,omitempty" bson:"extra_params,omitempty"`

	// Attachments are inputs consumed at creation time; the persisted
	// relations are retrieved through the attachment store afterwards.
	Attachments []attachments.Input `json:"-" bson:"-"`

	SentAt    *time.Time `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsPersisted reports whether the notification has been created in the backend.
func (n *Notification) IsPersisted() bool {
	return n.ID != uuid.Nil
}

// IsDue reports whether the notification should be sent now: either it has no
// schedule or the schedule has passed.
func (n *Notification) IsDue(now time.Time) bool {
	return n.SendAfter == nil || !n.SendAfter.After(now)
}

// Validate checks the invariants required before persistence.
func (n *Notification) Validate() error {
	if err := n.Recipient.Validate(); err != nil {
		return err
	}
	if n.Type == "" {
		return fmt.Errorf("%w: notification type is empty", ErrInvalidStatus)
	}
	if n.Status != "" && !n.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, n.Status)
	}
	return nil
}
