package fusiondex

import "time"

// FieldType defines the type of a collection field.
type FieldType string

// Field type constants.
const (
	FieldString        FieldType = "string"
	FieldInt32         FieldType = "int32"
	FieldInt64         FieldType = "int64"
	FieldFloat         FieldType = "float"
	FieldBool          FieldType = "bool"
	FieldGeopoint      FieldType = "geopoint"
	FieldStringArray   FieldType = "string[]"
	FieldInt32Array    FieldType = "int32[]"
	FieldInt64Array    FieldType = "int64[]"
	FieldFloatArray    FieldType = "float[]"
	FieldBoolArray     FieldType = "bool[]"
	FieldGeopointArray FieldType = "geopoint[]"
	FieldObject        FieldType = "object"
	FieldObjectArray   FieldType = "object[]"
	FieldAuto          FieldType = "auto"
)

// Distance is the vector distance metric of a vector field.
type Distance string

// Distance constants.
const (
	DistanceCosine       Distance = "cosine"
	DistanceInnerProduct Distance = "ip"
	DistanceL2           Distance = "l2"
)

// Field declares one collection field.
// A float[] field with NumDim > 0 is a vector field.
type Field struct {
	Name     string
	Type     FieldType
	Optional bool
	Facet    bool
	Sort     bool
	Nested   bool
	NumDim   int
	Distance Distance
	// EmbedFrom lists the string fields whose text is embedded into this vector field.
	EmbedFrom  []string
	EmbedModel string
}

// CollectionInfo represents collection metadata.
type CollectionInfo struct {
	Name                string
	Fields              []Field
	DefaultSortingField string
	NumDocuments        int
	CreatedAt           time.Time
}

// Document is a schema-less document keyed by field name. "id" is the document identifier.
type Document map[string]any

// Action selects how a write treats an existing document.
type Action string

// Action constants.
const (
	ActionCreate  Action = "create"
	ActionUpsert  Action = "upsert"
	ActionUpdate  Action = "update"
	ActionEmplace Action = "emplace"
)

// DirtyValues selects how values that disagree with the schema are handled.
type DirtyValues string

// DirtyValues constants.
const (
	DirtyReject         DirtyValues = "reject"
	DirtyDrop           DirtyValues = "drop"
	DirtyCoerceOrReject DirtyValues = "coerce_or_reject"
	DirtyCoerceOrDrop   DirtyValues = "coerce_or_drop"
)

// ImportResult is the outcome of one item in a batch import.
type ImportResult struct {
	Position int
	ID       string
	OK       bool
	Err      error
	// Document echoes the input of a failed item.
	Document Document
}

// ListResult is a paginated list of documents.
type ListResult struct {
	Documents  []Document
	NextCursor string
}

// SearchParams describes a keyword, vector or hybrid query.
type SearchParams struct {
	// Q is the keyword query. "*" matches every document.
	Q       string
	QueryBy []string
	// VectorQuery has the form field:([v1, v2, ...], k: 10) or field:([], id: doc-id).
	VectorQuery    string
	Filter         *FilterExpression
	PerPage        int
	IncludeVectors bool
}

// SearchHit is a single search hit. Score fields are nil when the hit did not
// come from that retriever.
type SearchHit struct {
	ID              string
	Document        Document
	TextMatch       *float64
	VectorDistance  *float32
	RankFusionScore *float64
}

// SearchResponse is the ranked page of hits.
type SearchResponse struct {
	Found      int
	Hits       []SearchHit
	SearchTime time.Duration
}

// FilterExpression is a set of must/should/must_not filter conditions.
type FilterExpression struct {
	Must    []FilterCondition
	Should  []FilterCondition
	MustNot []FilterCondition
}

// FilterCondition is a single filter clause.
type FilterCondition struct {
	Key   string
	Match string       // non-empty for exact match
	Range *RangeFilter // non-nil for numeric range
}

// RangeFilter defines numeric range boundaries.
type RangeFilter struct {
	GT  *float64
	GTE *float64
	LT  *float64
	LTE *float64
}
