// Package coercion validates documents against a schema and repairs mismatched values
// according to a dirty values policy.
package coercion

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
)

// Options configures a single Validate call.
type Options struct {
	DefaultSortingField string
	Operation           Operation
	// FallbackType is the type applied to fields declared as field.Auto.
	FallbackType field.Type
	DirtyValues  Policy
}

// Validate checks doc against fields in schema order and repairs it in place.
// On error the document must be discarded: fields visited before the failing one may
// already have been rewritten.
func Validate(doc map[string]any, fields []field.Field, opts Options) error {
	policy := opts.DirtyValues
	if policy == "" {
		policy = DefaultPolicy
	}
	updateLike := opts.Operation.IsUpdateLike()

	if dsf := opts.DefaultSortingField; dsf != "" && !updateLike {
		if _, ok := doc[dsf]; !ok {
			return violation("Field `%s` has been declared as a default sorting field, "+
				"but is not found in the document.", dsf)
		}
	}

	for _, f := range fields {
		if !f.IsIndexed() {
			continue
		}
		name := f.Name()

		v, ok := doc[name]
		if !ok {
			if f.Optional() || updateLike {
				continue
			}
			return violation("Field `%s` has been declared in the schema, but is not found in the document.", name)
		}

		if f.Optional() && v == nil {
			// update-like writes keep the key so the merge clears the stored value
			if !updateLike {
				delete(doc, name)
			}
			continue
		}

		ft := f.FieldType()
		if ft == field.Auto {
			if opts.FallbackType == "" || opts.FallbackType == field.Auto {
				continue
			}
			ft = opts.FallbackType
		}

		c := coercer{doc: doc, field: f, fieldType: ft, policy: policy}
		if err := c.coerceField(v); err != nil {
			return err
		}
	}

	return nil
}

// Vectors checks every present vector field against its declared dimensions and
// returns the vectors keyed by field name. Absent and null vectors are skipped.
func Vectors(doc map[string]any, fields []field.Field) (map[string][]float32, error) {
	out := make(map[string][]float32)
	for _, f := range fields {
		if !f.IsVector() {
			continue
		}
		v, ok := doc[f.Name()]
		if !ok || v == nil {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, violation("Field `%s` must be an array.", f.Name())
		}
		if len(arr) != f.NumDim() {
			return nil, domain.NewFieldError(domain.ErrDimensionMismatch,
				"Field `%s` must have %d dimensions.", f.Name(), f.NumDim())
		}
		vec, ok := document.Float32s(arr)
		if !ok {
			return nil, violation("Field `%s` must be %s %s.", f.Name(), floatWords.array, floatWords.name)
		}
		out[f.Name()] = vec
	}
	return out, nil
}

func violation(format string, args ...any) error {
	return domain.NewFieldError(domain.ErrSchemaViolation, format, args...)
}
