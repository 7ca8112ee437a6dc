package document

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
)

// IDField is the reserved key holding the document identifier.
const IDField = "id"

// MaxIDLength is the maximum document ID length.
const MaxIDLength = 256

// Document is a stored document (immutable value object).
type Document struct {
	id     string
	seqID  uint32
	fields map[string]any
}

// New validates and creates a Document. Fields are cloned; the id key is set to id.
func New(id string, seqID uint32, fields map[string]any) (Document, error) {
	if id == "" {
		return Document{}, domain.NewFieldError(domain.ErrSchemaViolation, "The `id` should not be empty.")
	}
	if len(id) > MaxIDLength {
		return Document{}, domain.NewFieldError(domain.ErrSchemaViolation,
			"The `id` is too long (max %d).", MaxIDLength)
	}

	c := CloneFields(fields)
	if c == nil {
		c = make(map[string]any, 1)
	}
	c[IDField] = id

	return Document{id: id, seqID: seqID, fields: c}, nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// SeqID returns the internal sequence id used as the key in every index.
func (d *Document) SeqID() uint32 { return d.seqID }

// Fields returns the document fields. Callers must not mutate the map.
func (d *Document) Fields() map[string]any { return d.fields }

// Get returns a single field value.
func (d *Document) Get(name string) (any, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// ExtractID reads the id key of a raw document.
// Returns ok=false when the document carries no id.
func ExtractID(raw map[string]any) (string, bool, error) {
	v, ok := raw[IDField]
	if !ok {
		return "", false, nil
	}
	id, isString := v.(string)
	if !isString {
		return "", false, domain.NewFieldError(domain.ErrSchemaViolation, "Document's `id` field should be a string.")
	}
	if id == "" {
		return "", false, domain.NewFieldError(domain.ErrSchemaViolation, "The `id` should not be empty.")
	}
	return id, true, nil
}
