// Package vectorquery parses vector query expressions of the form
//
//	field:([0.1, 0.2, ...], k: 10, distance_threshold: 0.5, flat_search_cutoff: 20)
//	field:([], id: doc-1)
package vectorquery

import (
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/fusiondex/internal/domain"
)

// Defaults applied when an option is omitted.
const (
	DefaultFlatSearchCutoff = 20
	MinK                    = 10
)

// Query is a parsed vector query (immutable value object).
type Query struct {
	field             string
	values            []float32
	refID             string
	k                 int
	distanceThreshold *float32
	flatSearchCutoff  int
}

// Parse parses a vector query expression.
func Parse(s string) (Query, error) {
	q := Query{flatSearchCutoff: DefaultFlatSearchCutoff}

	name, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Query{}, malformed()
	}
	q.field = strings.TrimSpace(name)
	rest = strings.TrimSpace(rest)
	if q.field == "" || !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return Query{}, malformed()
	}
	body := strings.TrimSpace(rest[1 : len(rest)-1])

	if !strings.HasPrefix(body, "[") {
		return Query{}, malformed()
	}
	end := strings.IndexByte(body, ']')
	if end < 0 {
		return Query{}, malformed()
	}
	values, err := parseValues(body[1:end])
	if err != nil {
		return Query{}, err
	}
	q.values = values

	opts := strings.TrimSpace(body[end+1:])
	if opts != "" {
		if !strings.HasPrefix(opts, ",") {
			return Query{}, malformed()
		}
		if err := q.parseOptions(opts[1:]); err != nil {
			return Query{}, err
		}
	}

	if (len(q.values) == 0) == (q.refID == "") {
		return Query{}, malformed()
	}
	return q, nil
}

func parseValues(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, malformed()
		}
		out[i] = float32(f)
	}
	return out, nil
}

func (q *Query) parseOptions(s string) error {
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(part, ":")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" || seen[key] {
			return malformed()
		}
		seen[key] = true

		switch key {
		case "id":
			q.refID = val
		case "k":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return malformed()
			}
			q.k = n
		case "distance_threshold":
			f, err := strconv.ParseFloat(val, 32)
			if err != nil || math.IsNaN(f) || f < 0 {
				return malformed()
			}
			t := float32(f)
			q.distanceThreshold = &t
		case "flat_search_cutoff":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return malformed()
			}
			q.flatSearchCutoff = n
		default:
			return malformed()
		}
	}
	return nil
}

func malformed() error {
	return domain.NewFieldError(domain.ErrInvalidQuery, "Malformed vector query string.")
}

// Field returns the vector field name.
func (q Query) Field() string { return q.field }

// Values returns the literal query vector. Empty for reference queries.
func (q Query) Values() []float32 { return q.values }

// RefID returns the referenced document id, or "".
func (q Query) RefID() string { return q.refID }

// IsReference reports whether the vector is taken from a stored document.
func (q Query) IsReference() bool { return q.refID != "" }

// K returns the number of neighbors to fetch: the explicit k, or perPage with a
// floor of MinK.
func (q Query) K(perPage int) int {
	if q.k > 0 {
		return q.k
	}
	return max(perPage, MinK)
}

// DistanceThreshold returns the maximum accepted distance, or nil.
func (q Query) DistanceThreshold() *float32 { return q.distanceThreshold }

// FlatSearchCutoff returns the filter size at or below which search is brute force.
func (q Query) FlatSearchCutoff() int { return q.flatSearchCutoff }
