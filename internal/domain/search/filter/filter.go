package filter

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/document"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, invalid("Filter has too many must conditions (max %d).", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, invalid("Filter has too many should conditions (max %d).", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, invalid("Filter has too many must_not conditions (max %d).", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Keys returns the distinct field names referenced by the expression, in order of appearance.
func (e Expression) Keys() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]Condition{e.must, e.should, e.mustNot} {
		for _, c := range group {
			if !seen[c.key] {
				seen[c.key] = true
				out = append(out, c.key)
			}
		}
	}
	return out
}

// Eval reports whether a document passes the expression. get returns a field value.
// All must conditions have to hold, at least one should condition when any are given,
// and no must_not condition.
func (e Expression) Eval(get func(key string) (any, bool)) bool {
	for _, c := range e.must {
		if !c.eval(get) {
			return false
		}
	}
	if len(e.should) > 0 {
		hit := false
		for _, c := range e.should {
			if c.eval(get) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.eval(get) {
			return false
		}
	}
	return true
}

// Condition is a single filter clause: either an exact match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, invalid("Filter key is required.")
	}
	if match == "" {
		return Condition{}, invalid("Filter on `%s` requires a match value.", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, invalid("Filter key is required.")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

func (c Condition) eval(get func(string) (any, bool)) bool {
	v, ok := get(c.key)
	if !ok || v == nil {
		return false
	}
	if arr, ok := v.([]any); ok {
		for _, e := range arr {
			if c.Matches(e) {
				return true
			}
		}
		return false
	}
	return c.Matches(v)
}

// Matches tests a single scalar value. Match conditions compare the value's text form,
// range conditions require a number.
func (c Condition) Matches(v any) bool {
	if c.rangeExpr != nil {
		f, ok := document.Float64(v)
		return ok && c.rangeExpr.Contains(f)
	}
	s, ok := document.String(v)
	return ok && s == c.match
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, invalid("Range filter needs at least one range boundary.")
	}
	if gt != nil && gte != nil {
		return Range{}, invalid("Range filter cannot specify both gt and gte.")
	}
	if lt != nil && lte != nil {
		return Range{}, invalid("Range filter cannot specify both lt and lte.")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether f lies within every boundary.
func (r Range) Contains(f float64) bool {
	switch {
	case r.gt != nil && f <= *r.gt:
		return false
	case r.gte != nil && f < *r.gte:
		return false
	case r.lt != nil && f >= *r.lt:
		return false
	case r.lte != nil && f > *r.lte:
		return false
	}
	return true
}

func invalid(format string, args ...any) error {
	return domain.NewFieldError(domain.ErrInvalidQuery, format, args...)
}
