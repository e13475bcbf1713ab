package email

import (
	"context"
	"fmt"
	"regexp"
)

// Sender is a provider-agnostic transactional email transport.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// Attachment is a file carried by an outgoing email.
type Attachment struct {
	Name        string `json:"name"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
}

// SendEmailParams represents one outgoing email.
type SendEmailParams struct {
	SendTo      string       `json:"send_to"`
	Subject     string       `json:"subject"`
	BodyHTML    string       `json:"body_html"`
	Tag         string       `json:"tag,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks that the parameters describe a sendable email.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	for _, a := range p.Attachments {
		if a.Name == "" {
			return fmt.Errorf("%w: attachment name is required", ErrInvalidParams)
		}
		if len(a.Content) == 0 {
			return fmt.Errorf("%w: attachment %q is empty", ErrInvalidParams, a.Name)
		}
	}
	return nil
}
