package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSchema signals an illegal combination of field attributes.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrSchemaViolation signals a document value that cannot be reconciled with its declared type.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrDimensionMismatch signals a vector whose length differs from the field's num_dim.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrReferenceNotFound signals a vector query that references an unknown document.
	ErrReferenceNotFound = errors.New("referenced document not found")
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// FieldError is a client-facing validation failure. Message is returned to the caller verbatim.
type FieldError struct {
	Kind    error
	Message string
}

func (e *FieldError) Error() string { return e.Message }

func (e *FieldError) Unwrap() error { return e.Kind }

// NewFieldError creates a FieldError of the given kind with a formatted message.
func NewFieldError(kind error, format string, args ...any) error {
	return &FieldError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Message returns the client-facing message of err if it carries one, and ok=false otherwise.
func Message(err error) (string, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Message, true
	}
	return "", false
}
