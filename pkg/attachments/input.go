package attachments

import (
	"bytes"
	"io"
	"os"

	"github.com/google/uuid"
)

// InputKind discriminates the attachment input union.
type InputKind string

const (
	// InputUpload carries raw content that has not been stored yet.
	InputUpload InputKind = "upload"
	// InputReference points at an already stored file record.
	InputReference InputKind = "reference"
)

// Input is an attachment before persistence: either an upload of new content
// or a reference to an existing file record. Construct values with NewUpload
// or NewReference; the Kind field makes the variant explicit.
type Input struct {
	Kind InputKind

	// Upload fields
	Source      FileSource
	Filename    string
	ContentType string // optional, detected from filename/content when empty

	// Reference fields
	FileID uuid.UUID

	// Description applies to both variants. For references it overrides the
	// description of any previous attachment of the same file.
	Description string
}

// UploadOption configures an upload input.
type UploadOption func(*Input)

// WithContentType sets an explicit content type, skipping detection.
func WithContentType(ct string) UploadOption {
	return func(in *Input) { in.ContentType = ct }
}

// WithDescription sets the per-notification description.
func WithDescription(desc string) UploadOption {
	return func(in *Input) { in.Description = desc }
}

// NewUpload creates an upload input from an arbitrary file source.
func NewUpload(src FileSource, filename string, opts ...UploadOption) Input {
	in := Input{Kind: InputUpload, Source: src, Filename: filename}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

// NewUploadBytes creates an upload input from an in-memory byte buffer.
func NewUploadBytes(data []byte, filename string, opts ...UploadOption) Input {
	return NewUpload(BytesSource(data), filename, opts...)
}

// NewReference creates a reference input pointing at an existing file record.
func NewReference(fileID uuid.UUID, description string) Input {
	return Input{Kind: InputReference, FileID: fileID, Description: description}
}

// Validate checks the variant invariants before processing.
func (in Input) Validate() error {
	switch in.Kind {
	case InputUpload:
		if in.Source == nil {
			return ErrNilFileSource
		}
		if in.Filename == "" {
			return ErrEmptyFilename
		}
		return nil
	case InputReference:
		if in.FileID == uuid.Nil {
			return ErrReferencedFileNotFound
		}
		return nil
	default:
		return ErrInvalidInputKind
	}
}

// FileSource abstracts where upload content comes from: a byte buffer, a
// stream, or a path on disk.
type FileSource interface {
	Open() (io.ReadCloser, error)
}

type bytesSource struct{ data []byte }

func (s bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// BytesSource wraps an in-memory byte buffer as a FileSource.
func BytesSource(data []byte) FileSource {
	return bytesSource{data: data}
}

type readerSource struct{ r io.Reader }

func (s readerSource) Open() (io.ReadCloser, error) {
	if rc, ok := s.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(s.r), nil
}

// ReaderSource wraps a stream as a FileSource. The reader is consumed once.
func ReaderSource(r io.Reader) FileSource {
	return readerSource{r: r}
}

type pathSource struct{ path string }

func (s pathSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// PathSource reads upload content from a file on disk.
func PathSource(path string) FileSource {
	return pathSource{path: path}
}
