package request

import (
	"strings"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/filter"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/vectorquery"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultPerPage = 10
	MaxPerPage     = 250
	// Wildcard matches every document in the text ranking.
	Wildcard = "*"
)

// Request is a validated search query.
type Request struct {
	query          string
	queryBy        []string
	vectorQuery    *vectorquery.Query
	filters        filter.Expression
	perPage        int
	includeVectors bool
}

// New validates and normalizes search parameters.
// query_by is required unless q is the wildcard. per_page defaults to 10.
func New(
	query string,
	queryBy []string,
	vectorQuery string,
	filters filter.Expression,
	perPage int,
	includeVectors bool,
) (Request, error) {
	if query == "" {
		return Request{}, invalid("Parameter `q` is required.")
	}
	if len(query) > MaxQueryLength {
		return Request{}, invalid("Parameter `q` is too long (max %d chars).", MaxQueryLength)
	}

	fields := make([]string, 0, len(queryBy))
	for _, f := range queryBy {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if query != Wildcard && len(fields) == 0 {
		return Request{}, invalid("No search fields specified for the query.")
	}

	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	r := Request{
		query:          query,
		queryBy:        fields,
		filters:        filters,
		perPage:        perPage,
		includeVectors: includeVectors,
	}
	if vectorQuery != "" {
		vq, err := vectorquery.Parse(vectorQuery)
		if err != nil {
			return Request{}, err
		}
		r.vectorQuery = &vq
	}
	return r, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// IsWildcard reports whether the text query matches every document.
func (r *Request) IsWildcard() bool { return r.query == Wildcard }

// QueryBy returns the fields searched by the text query.
func (r *Request) QueryBy() []string { return r.queryBy }

// VectorQuery returns the parsed vector query, if one was given.
func (r *Request) VectorQuery() (vectorquery.Query, bool) {
	if r.vectorQuery == nil {
		return vectorquery.Query{}, false
	}
	return *r.vectorQuery, true
}

// Filters returns the pre-filter expression.
func (r *Request) Filters() filter.Expression { return r.filters }

// PerPage returns the maximum number of hits returned.
func (r *Request) PerPage() int { return r.perPage }

// IncludeVectors reports whether vector fields are kept in returned documents.
func (r *Request) IncludeVectors() bool { return r.includeVectors }

func invalid(format string, args ...any) error {
	return domain.NewFieldError(domain.ErrInvalidQuery, format, args...)
}
