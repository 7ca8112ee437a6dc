package batch

import "github.com/kailas-cloud/fusiondex/internal/domain"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of importing one document of a batch.
type Result struct {
	position int
	id       string
	status   ItemStatus
	err      error
	document map[string]any
}

// NewOK creates a successful batch result.
func NewOK(position int, id string) Result {
	return Result{position: position, id: id, status: StatusOK}
}

// NewError creates a failed batch result. document is the input echoed back to the caller.
func NewError(position int, id string, err error, document map[string]any) Result {
	return Result{position: position, id: id, status: StatusError, err: err, document: document}
}

// Position returns the zero-based index of the item in the input.
func (r Result) Position() int { return r.position }

// ID returns the document identifier. Empty when the item failed before an id was known.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Message returns the user-facing error message, or "" for successful items.
func (r Result) Message() string {
	if r.err == nil {
		return ""
	}
	if msg, ok := domain.Message(r.err); ok {
		return msg
	}
	return r.err.Error()
}

// Document returns the input document of a failed item.
func (r Result) Document() map[string]any { return r.document }

// NumImported counts the successful results.
func NumImported(results []Result) int {
	n := 0
	for _, r := range results {
		if r.status == StatusOK {
			n++
		}
	}
	return n
}
