package patch

import (
	"fmt"

	"github.com/kailas-cloud/fusiondex/internal/domain/document"
)

// Patch is a partial document update.
// Keys absent from the patch are unchanged. A nil value clears that field.
type Patch struct {
	fields map[string]any
}

// New validates and creates a Patch. At least one field must be provided.
func New(fields map[string]any) (Patch, error) {
	if len(fields) == 0 {
		return Patch{}, fmt.Errorf("at least one field must be provided")
	}
	return Patch{fields: fields}, nil
}

// Fields returns the raw patch fields.
func (p Patch) Fields() map[string]any { return p.fields }

// Apply returns a new field map: base overlaid with the patch. base is not modified.
func (p Patch) Apply(base map[string]any) map[string]any {
	out := document.CloneFields(base)
	if out == nil {
		out = make(map[string]any, len(p.fields))
	}
	for k, v := range p.fields {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = document.CloneValue(v)
	}
	return out
}

// Touches reports whether the patch sets or clears any of the given fields.
func (p Patch) Touches(names ...string) bool {
	for _, n := range names {
		if _, ok := p.fields[n]; ok {
			return true
		}
	}
	return false
}
