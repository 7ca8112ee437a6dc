package schema

import (
	"regexp"
	"time"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
)

// MaxFields is the maximum number of declared fields per collection.
const MaxFields = 256

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Schema is the collection schema aggregate (immutable value object).
type Schema struct {
	name                string
	fields              []field.Field
	defaultSortingField string
	createdAt           int64
}

func validateName(name string) error {
	if name == "" {
		return domain.NewFieldError(domain.ErrInvalidSchema, "Collection name is required.")
	}
	if len(name) > 64 {
		return domain.NewFieldError(domain.ErrInvalidSchema, "Collection name is too long (max 64).")
	}
	if !nameRegex.MatchString(name) {
		return domain.NewFieldError(domain.ErrInvalidSchema,
			"Collection name must be alphanumeric with underscores and hyphens.")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) == 0 {
		return domain.NewFieldError(domain.ErrInvalidSchema, "The `fields` value should be an array of objects.")
	}
	if len(fields) > MaxFields {
		return domain.NewFieldError(domain.ErrInvalidSchema, "Too many fields (max %d).", MaxFields)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return domain.NewFieldError(domain.ErrInvalidSchema, "There are duplicate field names in the schema.")
		}
		seen[f.Name()] = true
	}
	return nil
}

func validateDefaultSortingField(fields []field.Field, name string) error {
	if name == "" {
		return nil
	}
	f, ok := lookup(fields, name)
	if !ok {
		return domain.NewFieldError(domain.ErrInvalidSchema,
			"Default sorting field is defined as `%s` but is not found in the schema.", name)
	}
	if !f.FieldType().IsNumeric() {
		return domain.NewFieldError(domain.ErrInvalidSchema,
			"Default sorting field `%s` is not a sortable type.", name)
	}
	return nil
}

func validateEmbedSources(fields []field.Field) error {
	for _, f := range fields {
		e, ok := f.Embed()
		if !ok {
			continue
		}
		for _, src := range e.From() {
			sf, ok := lookup(fields, src)
			if !ok || !sf.FieldType().IsString() {
				return domain.NewFieldError(domain.ErrInvalidSchema,
					"Property `embed.from` can only refer to string or string array fields.")
			}
		}
	}
	return nil
}

// New validates and creates a Schema.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Fields: unique names, max MaxFields.
func New(name string, fields []field.Field, defaultSortingField string) (Schema, error) {
	if err := validateName(name); err != nil {
		return Schema{}, err
	}
	if err := validateFields(fields); err != nil {
		return Schema{}, err
	}
	if err := validateDefaultSortingField(fields, defaultSortingField); err != nil {
		return Schema{}, err
	}
	if err := validateEmbedSources(fields); err != nil {
		return Schema{}, err
	}

	return Schema{
		name:                name,
		fields:              append([]field.Field(nil), fields...),
		defaultSortingField: defaultSortingField,
		createdAt:           time.Now().UnixMilli(),
	}, nil
}

// Name returns the collection name.
func (s Schema) Name() string { return s.name }

// Fields returns the declared fields in schema order.
func (s Schema) Fields() []field.Field { return s.fields }

// DefaultSortingField returns the default sorting field name, if any.
func (s Schema) DefaultSortingField() string { return s.defaultSortingField }

// CreatedAt returns the creation timestamp (unix millis).
func (s Schema) CreatedAt() int64 { return s.createdAt }

// FieldByName looks up a field by name.
func (s Schema) FieldByName(name string) (field.Field, bool) {
	return lookup(s.fields, name)
}

// VectorFields returns the fields that own a vector index.
func (s Schema) VectorFields() []field.Field {
	var out []field.Field
	for _, f := range s.fields {
		if f.IsVector() {
			out = append(out, f)
		}
	}
	return out
}

// TextFields returns the string and string[] fields.
func (s Schema) TextFields() []field.Field {
	var out []field.Field
	for _, f := range s.fields {
		if f.FieldType().IsString() {
			out = append(out, f)
		}
	}
	return out
}

// WithoutField returns a copy of the schema with the named field removed.
func (s Schema) WithoutField(name string) (Schema, error) {
	if _, ok := s.FieldByName(name); !ok {
		return Schema{}, domain.NewFieldError(domain.ErrInvalidSchema,
			"Field `%s` is not part of collection schema.", name)
	}
	if name == s.defaultSortingField {
		return Schema{}, domain.NewFieldError(domain.ErrInvalidSchema,
			"Field `%s` is the default sorting field and cannot be dropped.", name)
	}

	fields := make([]field.Field, 0, len(s.fields)-1)
	for _, f := range s.fields {
		if f.Name() == name {
			continue
		}
		if e, ok := f.Embed(); ok {
			for _, src := range e.From() {
				if src == name {
					return Schema{}, domain.NewFieldError(domain.ErrInvalidSchema,
						"Field `%s` is used as an embedding source of `%s`.", name, f.Name())
				}
			}
		}
		fields = append(fields, f)
	}

	out := s
	out.fields = fields
	return out, nil
}

func lookup(fields []field.Field, name string) (field.Field, bool) {
	for _, f := range fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}
