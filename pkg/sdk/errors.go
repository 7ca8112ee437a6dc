package fusiondex

import "github.com/kailas-cloud/fusiondex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrAlreadyExists          = domain.ErrAlreadyExists
	ErrInvalidSchema          = domain.ErrInvalidSchema
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrSchemaViolation        = domain.ErrSchemaViolation
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
	ErrReferenceNotFound      = domain.ErrReferenceNotFound
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

// Message returns the user-facing message carried by err, if any.
func Message(err error) (string, bool) {
	return domain.Message(err)
}
