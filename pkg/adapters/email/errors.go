package email

import "errors"

var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid email adapter configuration")
	ErrSenderNil     = errors.New("email sender is nil")

	// Delivery errors
	ErrFailedToSendEmail  = errors.New("failed to send email")
	ErrInvalidParams      = errors.New("invalid email parameters")
	ErrNoRecipientAddress = errors.New("recipient has no email address")
	ErrResolverMissing    = errors.New("account recipients require an address resolver")
	ErrRenderFailed       = errors.New("email template rendering failed")
)
