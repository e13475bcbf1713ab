package attachments

import "errors"

var (
	// Configuration errors
	ErrDriverNil        = errors.New("attachment storage driver is nil")
	ErrMetadataStoreNil = errors.New("attachment metadata store is nil")
	ErrInvalidConfig    = errors.New("invalid attachment storage configuration")

	// Input validation errors
	ErrEmptyFilename    = errors.New("attachment filename is empty")
	ErrNilFileSource    = errors.New("attachment file source is nil")
	ErrInvalidInputKind = errors.New("attachment input kind is invalid")

	// Resolution errors
	ErrReferencedFileNotFound = errors.New("referenced attachment file not found")
	ErrFileNotFound           = errors.New("attachment file not found")
	ErrAttachmentNotFound     = errors.New("notification attachment not found")

	// Lifecycle errors
	ErrFileInUse         = errors.New("attachment file is referenced by notifications")
	ErrDuplicateChecksum = errors.New("attachment content with this checksum already exists")

	// Driver errors
	ErrDriverMismatch      = errors.New("storage identifiers belong to a different driver")
	ErrFailedToReadSource  = errors.New("failed to read attachment source")
	ErrFailedToStoreBytes  = errors.New("failed to store attachment bytes")
	ErrFailedToReadBytes   = errors.New("failed to read attachment bytes")
	ErrFailedToDeleteBytes = errors.New("failed to delete attachment bytes")
)
