package notifications

import "errors"

var (
	// Construction errors
	ErrBackendNil  = errors.New("notification backend is nil")
	ErrResolverNil = errors.New("context resolver is nil")

	// Context resolver errors
	ErrNilGenerator             = errors.New("context generator is nil")
	ErrGeneratorName            = errors.New("context generator name is empty")
	ErrDuplicateGenerator       = errors.New("context generator already registered")
	ErrContextGeneratorNotFound = errors.New("context generator not found")
	ErrContextResolutionFailed  = errors.New("context resolution failed")

	// Dispatch errors
	ErrAdapterNotFound      = errors.New("no adapter registered for notification type")
	ErrQueueServiceMissing  = errors.New("queue service is not configured")
	ErrAdapterSendFailed    = errors.New("adapter send failed")
	ErrEnqueueFailed        = errors.New("failed to enqueue notification")
	ErrScheduledInFuture    = errors.New("notification is scheduled in the future")
	ErrStoredContextMissing = errors.New("notification has no stored context")

	// Record errors
	ErrNotificationNotFound     = errors.New("notification not found")
	ErrNotificationNotPersisted = errors.New("notification has not been persisted")
	ErrAlreadyPersisted         = errors.New("notification is already persisted")
	ErrInvalidRecipient         = errors.New("invalid notification recipient")
	ErrInvalidStatus            = errors.New("invalid notification status")
	ErrInvalidBatchSize         = errors.New("batch size must be positive")

	// Transition errors
	ErrNotPending = errors.New("notification is not pending send")
	ErrNotSent    = errors.New("notification has not been sent")
)
