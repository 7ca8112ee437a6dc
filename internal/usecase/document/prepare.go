package document

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
)

// Prepared is an incoming document that passed coercion and the vector dimension check.
// It has not been checked against stored documents yet.
type Prepared struct {
	id     string
	hasID  bool
	op     coercion.Operation
	policy coercion.Policy
	fields map[string]any
}

// ID returns the document id supplied by the caller, or "".
func (p Prepared) ID() string { return p.id }

// Prepare validates raw against sch without touching any index. raw is not modified.
// Fields with an embed source are left to Apply: they are generated when absent.
func Prepare(sch schema.Schema, raw map[string]any, op coercion.Operation, policy coercion.Policy) (Prepared, error) {
	id, hasID, err := domdoc.ExtractID(raw)
	if err != nil {
		return Prepared{}, err
	}
	if op == coercion.Update && !hasID {
		return Prepared{}, domain.NewFieldError(domain.ErrSchemaViolation,
			"For update, the `id` key must be provided.")
	}

	fields := domdoc.CloneFields(raw)
	if fields == nil {
		fields = make(map[string]any)
	}
	if err := validate(sch, fields, op, policy); err != nil {
		return Prepared{}, err
	}

	return Prepared{id: id, hasID: hasID, op: op, policy: policy, fields: fields}, nil
}

func validate(sch schema.Schema, fields map[string]any, op coercion.Operation, policy coercion.Policy) error {
	opts := coercion.Options{
		DefaultSortingField: sch.DefaultSortingField(),
		Operation:           op,
		DirtyValues:         policy,
	}
	if err := coercion.Validate(fields, coercibleFields(sch), opts); err != nil {
		return err
	}
	_, err := coercion.Vectors(fields, sch.Fields())
	return err
}

func coercibleFields(sch schema.Schema) []field.Field {
	all := sch.Fields()
	out := make([]field.Field, 0, len(all))
	for _, f := range all {
		if _, ok := f.Embed(); ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
