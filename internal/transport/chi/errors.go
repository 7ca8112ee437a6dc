package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	logpkg "github.com/kailas-cloud/fusiondex/internal/logger"
)

type errorCode string

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest             errorCode = "bad_request"
	codeUnauthorized           errorCode = "unauthorized"
	codeNotFound               errorCode = "not_found"
	codeDocumentNotFound       errorCode = "document_not_found"
	codeAlreadyExists          errorCode = "already_exists"
	codeInvalidSchema          errorCode = "invalid_schema"
	codeSchemaViolation        errorCode = "schema_violation"
	codeDimensionMismatch      errorCode = "dimension_mismatch"
	codeReferenceNotFound      errorCode = "reference_not_found"
	codeInvalidQuery           errorCode = "invalid_query"
	codeRateLimited            errorCode = "rate_limited"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type sentinelMapping struct {
	sentinel error
	status   int
	code     errorCode
}

// errorTable maps domain sentinels to HTTP responses. First match wins.
var errorTable = []sentinelMapping{
	{domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists},
	{domain.ErrInvalidSchema, http.StatusBadRequest, codeInvalidSchema},
	{domain.ErrSchemaViolation, http.StatusBadRequest, codeSchemaViolation},
	{domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimensionMismatch},
	{domain.ErrReferenceNotFound, http.StatusBadRequest, codeReferenceNotFound},
	{domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery},
	{domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError},
}

// classify returns the status, code and client-facing message for err.
// Unknown errors are internal; their text is never returned to the client.
func classify(err error) (int, errorCode, string) {
	for _, m := range errorTable {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		if msg, ok := domain.Message(err); ok {
			return m.status, m.code, msg
		}
		return m.status, m.code, m.sentinel.Error()
	}
	return http.StatusInternalServerError, codeInternalError, "internal error"
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	log := logpkg.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error("internal error", zap.Error(err))
	} else {
		log.Debug("domain error", zap.Error(err), zap.String("code", string(code)))
	}
	writeError(w, status, code, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
