package field

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
)

// MaxNameLength is the longest accepted field name. Nested fields use dotted paths.
const MaxNameLength = 128

// Type is the declared value type of a field.
type Type string

// Field type constants.
const (
	String        Type = "string"
	Int32         Type = "int32"
	Int64         Type = "int64"
	Float         Type = "float"
	Bool          Type = "bool"
	Geopoint      Type = "geopoint"
	StringArray   Type = "string[]"
	Int32Array    Type = "int32[]"
	Int64Array    Type = "int64[]"
	FloatArray    Type = "float[]"
	BoolArray     Type = "bool[]"
	GeopointArray Type = "geopoint[]"
	Object        Type = "object"
	ObjectArray   Type = "object[]"
	// Auto takes its type from the fallback type supplied at ingest time.
	Auto Type = "auto"
)

var validTypes = map[Type]struct{}{
	String: {}, Int32: {}, Int64: {}, Float: {}, Bool: {}, Geopoint: {},
	StringArray: {}, Int32Array: {}, Int64Array: {}, FloatArray: {}, BoolArray: {}, GeopointArray: {},
	Object: {}, ObjectArray: {}, Auto: {},
}

// IsValid checks if the field type is supported.
func (t Type) IsValid() bool {
	_, ok := validTypes[t]
	return ok
}

// IsArray reports whether values of this type are JSON arrays of scalars.
func (t Type) IsArray() bool {
	switch t {
	case StringArray, Int32Array, Int64Array, FloatArray, BoolArray, GeopointArray:
		return true
	default:
		return false
	}
}

// IsObject reports whether the type is an object container.
func (t Type) IsObject() bool { return t == Object || t == ObjectArray }

// IsNumeric reports whether the type is a scalar number.
func (t Type) IsNumeric() bool { return t == Int32 || t == Int64 || t == Float }

// IsString reports whether the type holds text.
func (t Type) IsString() bool { return t == String || t == StringArray }

// Distance is the vector distance metric of a vector field.
type Distance string

// Distance constants.
const (
	Cosine       Distance = "cosine"
	InnerProduct Distance = "ip"
	L2           Distance = "l2"
)

// IsValid checks if the distance metric is supported.
func (d Distance) IsValid() bool { return d == Cosine || d == InnerProduct || d == L2 }

// Embed describes how a vector field is derived from text fields of the same document.
type Embed struct {
	from  []string
	model string
}

// NewEmbed creates an embedding source description.
func NewEmbed(from []string, model string) Embed {
	return Embed{from: append([]string(nil), from...), model: model}
}

// From returns the source field names.
func (e Embed) From() []string { return e.from }

// Model returns the embedding model name.
func (e Embed) Model() string { return e.model }

// Field is a declared schema field (immutable value object).
type Field struct {
	name      string
	fieldType Type
	optional  bool
	facet     bool
	sort      bool
	nested    bool
	numDim    int
	hasNumDim bool
	distance  Distance
	embed     *Embed
}

// Option configures optional field attributes.
type Option func(*Field)

// Optional marks the field as not required in documents.
func Optional() Option { return func(f *Field) { f.optional = true } }

// Facet enables faceting on the field.
func Facet() Option { return func(f *Field) { f.facet = true } }

// Sort enables sorting on the field.
func Sort() Option { return func(f *Field) { f.sort = true } }

// Nested marks a field that lives inside an array of objects.
func Nested() Option { return func(f *Field) { f.nested = true } }

// NumDim declares the field as a vector with n dimensions.
func NumDim(n int) Option {
	return func(f *Field) {
		f.numDim = n
		f.hasNumDim = true
	}
}

// WithDistance sets the distance metric of a vector field.
func WithDistance(d Distance) Option { return func(f *Field) { f.distance = d } }

// WithEmbed derives the vector from the given source fields.
func WithEmbed(e Embed) Option { return func(f *Field) { f.embed = &e } }

// New validates and creates a Field.
func New(name string, ft Type, opts ...Option) (Field, error) {
	if name == "" {
		return Field{}, domain.NewFieldError(domain.ErrInvalidSchema, "Field name is required.")
	}
	if len(name) > MaxNameLength {
		return Field{}, domain.NewFieldError(domain.ErrInvalidSchema,
			"Field name `%s` is too long (max %d).", name, MaxNameLength)
	}
	if !ft.IsValid() {
		return Field{}, domain.NewFieldError(domain.ErrInvalidSchema,
			"Field `%s` has an invalid data type `%s`.", name, ft)
	}

	f := Field{name: name, fieldType: ft}
	for _, opt := range opts {
		opt(&f)
	}

	if err := f.validateVector(); err != nil {
		return Field{}, err
	}
	return f, nil
}

func (f *Field) validateVector() error {
	if f.hasNumDim && f.numDim <= 0 {
		return domain.NewFieldError(domain.ErrInvalidSchema, "Property `num_dim` must be a positive integer.")
	}
	if f.hasNumDim && f.fieldType != FloatArray {
		return domain.NewFieldError(domain.ErrInvalidSchema, "Property `num_dim` is only allowed on a float array field.")
	}

	if f.IsVector() {
		if f.facet {
			return domain.NewFieldError(domain.ErrInvalidSchema, "Property `facet` is not allowed on a vector field.")
		}
		if f.sort {
			return domain.NewFieldError(domain.ErrInvalidSchema, "Property `sort` cannot be enabled on a vector field.")
		}
		if f.distance == "" {
			f.distance = Cosine
		}
		if !f.distance.IsValid() {
			return domain.NewFieldError(domain.ErrInvalidSchema,
				"Property `vec_dist` must be one of `cosine`, `ip` or `l2`.")
		}
	}

	if f.embed != nil {
		if len(f.embed.from) == 0 {
			return domain.NewFieldError(domain.ErrInvalidSchema, "Property `embed.from` must contain at least one field.")
		}
		if !f.IsVector() {
			return domain.NewFieldError(domain.ErrInvalidSchema,
				"Property `embed` is only allowed on a float array field with `num_dim`.")
		}
	}
	return nil
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the declared type.
func (f Field) FieldType() Type { return f.fieldType }

// Optional reports whether documents may omit the field.
func (f Field) Optional() bool { return f.optional }

// Facet reports whether faceting is enabled.
func (f Field) Facet() bool { return f.facet }

// Sort reports whether sorting is enabled.
func (f Field) Sort() bool { return f.sort }

// Nested reports whether the field lives inside an array of objects.
func (f Field) Nested() bool { return f.nested }

// NumDim returns the vector dimension, 0 for non-vector fields.
func (f Field) NumDim() int { return f.numDim }

// IsVector reports whether the field is indexed in a vector index.
func (f Field) IsVector() bool { return f.fieldType == FloatArray && f.numDim > 0 }

// Distance returns the vector distance metric.
func (f Field) Distance() Distance { return f.distance }

// Embed returns the embedding source, if the vector is derived from text.
func (f Field) Embed() (Embed, bool) {
	if f.embed == nil {
		return Embed{}, false
	}
	return *f.embed, true
}

// IsIndexed reports whether the field is a regular (non-container) schema field.
func (f Field) IsIndexed() bool { return !f.fieldType.IsObject() && f.name != "id" }
