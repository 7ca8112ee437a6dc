package coercion

import (
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
)

// action is what the caller does with a coerced value.
type action int

const (
	keep action = iota
	replace
	erase
)

// typeWords holds the article forms used in "must be <suffix> <type>." messages.
type typeWords struct {
	scalar string
	array  string
	name   string
}

var (
	stringWords   = typeWords{scalar: "a", array: "an array of", name: "string"}
	int32Words    = typeWords{scalar: "an", array: "an array of", name: "int32"}
	int64Words    = typeWords{scalar: "an", array: "an array of", name: "int64"}
	boolWords     = typeWords{scalar: "a", array: "a array of", name: "bool"}
	floatWords    = typeWords{scalar: "a", array: "a array of", name: "float"}
	geopointWords = typeWords{scalar: "a", array: "an array of", name: "geopoint"}
)

type coercer struct {
	doc       map[string]any
	field     field.Field
	fieldType field.Type
	policy    Policy
}

func (c *coercer) name() string { return c.field.Name() }

func (c *coercer) coerceField(v any) error {
	kind := document.KindOf(v)

	switch c.fieldType {
	case field.String:
		if kind != document.KindString {
			return c.scalar(c.coerceString(v, false))
		}
	case field.Int32:
		if kind != document.KindInt {
			return c.scalar(c.coerceInt32(v, false))
		}
		return c.scalar(c.checkInt32(v, false))
	case field.Int64:
		if kind != document.KindInt {
			return c.scalar(c.coerceInt64(v, false))
		}
	case field.Float:
		if !document.IsNumber(v) {
			return c.scalar(c.coerceFloat(v, false))
		}
	case field.Bool:
		if kind != document.KindBool {
			return c.scalar(c.coerceBool(v, false))
		}
	case field.Geopoint:
		pair, ok := v.([]any)
		if !ok || len(pair) != 2 {
			return violation("Field `%s` must be a 2 element array: [lat, lng].", c.name())
		}
		if !document.IsNumber(pair[0]) || !document.IsNumber(pair[1]) {
			return c.scalar(c.coerceGeopoint(pair, false))
		}
	default:
		if c.fieldType.IsArray() {
			return c.coerceArray(v)
		}
	}
	return nil
}

// scalar applies the outcome of coercing a top-level value.
func (c *coercer) scalar(out any, act action, err error) error {
	if err != nil {
		return err
	}
	switch act {
	case replace:
		c.doc[c.name()] = out
	case erase:
		delete(c.doc, c.name())
	}
	return nil
}

func (c *coercer) coerceArray(v any) error {
	arr, ok := v.([]any)
	if !ok {
		if c.field.Optional() && (c.policy == Drop || c.policy == CoerceOrDrop) {
			delete(c.doc, c.name())
			return nil
		}
		return violation("Field `%s` must be an array.", c.name())
	}

	// A geopoint[] inside an array of objects may hold one flat [lat, lng] pair.
	if c.fieldType == field.GeopointArray && c.field.Nested() && len(arr) == 2 && document.IsNumber(arr[0]) {
		if document.IsNumber(arr[1]) {
			return nil
		}
		return c.scalar(c.coerceGeopoint(arr, true))
	}

	out := make([]any, 0, len(arr))
	changed := false
	for _, item := range arr {
		res, act, err := c.coerceElement(item)
		if err != nil {
			return err
		}
		switch act {
		case erase:
			changed = true
			continue
		case replace:
			changed = true
			out = append(out, res)
		default:
			out = append(out, item)
		}
	}

	if changed {
		c.doc[c.name()] = out
	}
	return nil
}

func (c *coercer) coerceElement(item any) (any, action, error) {
	kind := document.KindOf(item)

	switch c.fieldType {
	case field.StringArray:
		if kind != document.KindString {
			return c.coerceString(item, true)
		}
	case field.Int32Array:
		if kind != document.KindInt {
			return c.coerceInt32(item, true)
		}
		return c.checkInt32(item, true)
	case field.Int64Array:
		if kind != document.KindInt {
			return c.coerceInt64(item, true)
		}
	case field.FloatArray:
		if !document.IsNumber(item) {
			return c.coerceFloat(item, true)
		}
	case field.BoolArray:
		if kind != document.KindBool {
			return c.coerceBool(item, true)
		}
	case field.GeopointArray:
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, keep, violation("Field `%s` must contain 2 element arrays: [ [lat, lng],... ].", c.name())
		}
		if !document.IsNumber(pair[0]) || !document.IsNumber(pair[1]) {
			return c.coerceGeopoint(pair, true)
		}
	}
	return item, keep, nil
}

func (c *coercer) mismatch(w typeWords, inArray bool) error {
	suffix := w.scalar
	if inArray {
		suffix = w.array
	}
	return violation("Field `%s` must be %s %s.", c.name(), suffix, w.name)
}

// beforeCoerce applies the REJECT and DROP rows of the policy table.
// done=true means the outcome is decided without attempting a conversion.
func (c *coercer) beforeCoerce(w typeWords, inArray bool) (act action, done bool, err error) {
	switch c.policy {
	case Reject:
		return keep, true, c.mismatch(w, inArray)
	case Drop:
		if !c.field.Optional() {
			return keep, true, c.mismatch(w, inArray)
		}
		return erase, true, nil
	default:
		return keep, false, nil
	}
}

// uncoercible applies the policy table to a value no conversion rule accepted.
func (c *coercer) uncoercible(w typeWords, inArray bool) (any, action, error) {
	if c.policy == CoerceOrDrop && c.field.Optional() {
		return nil, erase, nil
	}
	return nil, keep, c.mismatch(w, inArray)
}

func (c *coercer) coerceString(v any, inArray bool) (any, action, error) {
	if act, done, err := c.beforeCoerce(stringWords, inArray); done {
		return nil, act, err
	}

	switch document.KindOf(v) {
	case document.KindInt:
		if s, ok := document.String(v); ok {
			return s, replace, nil
		}
	case document.KindFloat:
		if f, ok := document.Float64(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), replace, nil
		}
	case document.KindBool:
		return strconv.FormatBool(v.(bool)), replace, nil
	}

	if c.policy == CoerceOrDrop && c.field.Optional() {
		return nil, erase, nil
	}
	if c.field.Nested() && document.KindOf(v) == document.KindArray {
		return nil, keep, violation("Field `%s` has an incorrect type. "+
			"Hint: field inside an array of objects must be an array type as well.", c.name())
	}
	return nil, keep, c.mismatch(stringWords, inArray)
}

func (c *coercer) coerceInt32(v any, inArray bool) (any, action, error) {
	if act, done, err := c.beforeCoerce(int32Words, inArray); done {
		return nil, act, err
	}

	var n int64
	switch document.KindOf(v) {
	case document.KindFloat:
		f, _ := document.Float64(v)
		switch {
		case math.IsNaN(f):
			return c.uncoercible(int32Words, inArray)
		case f > math.MaxInt32:
			n = math.MaxInt32 + 1
		case f < math.MinInt32:
			n = math.MinInt32 - 1
		default:
			n = int64(f)
		}
	case document.KindBool:
		n = boolToInt(v.(bool))
	case document.KindString:
		parsed, err := strconv.ParseInt(v.(string), 10, 32)
		if err != nil {
			return c.uncoercible(int32Words, inArray)
		}
		n = parsed
	default:
		return c.uncoercible(int32Words, inArray)
	}

	return c.rangeInt32(n, n, replace)
}

// checkInt32 range-checks a value that is already an integer.
func (c *coercer) checkInt32(v any, _ bool) (any, action, error) {
	n, ok := document.Int64(v)
	if !ok {
		n = math.MaxInt64
	}
	return c.rangeInt32(n, v, keep)
}

func (c *coercer) rangeInt32(n int64, out any, act action) (any, action, error) {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return out, act, nil
	}
	if c.field.Optional() && (c.policy == Drop || c.policy == CoerceOrReject) {
		return nil, erase, nil
	}
	return nil, keep, violation("Field `%s` exceeds maximum value of int32.", c.name())
}

func (c *coercer) coerceInt64(v any, inArray bool) (any, action, error) {
	if act, done, err := c.beforeCoerce(int64Words, inArray); done {
		return nil, act, err
	}

	switch document.KindOf(v) {
	case document.KindFloat:
		f, _ := document.Float64(v)
		if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return c.uncoercible(int64Words, inArray)
		}
		return int64(f), replace, nil
	case document.KindBool:
		return boolToInt(v.(bool)), replace, nil
	case document.KindString:
		n, err := strconv.ParseInt(v.(string), 10, 64)
		if err == nil {
			return n, replace, nil
		}
	}
	return c.uncoercible(int64Words, inArray)
}

func (c *coercer) coerceBool(v any, inArray bool) (any, action, error) {
	if act, done, err := c.beforeCoerce(boolWords, inArray); done {
		return nil, act, err
	}

	switch document.KindOf(v) {
	case document.KindInt:
		if n, ok := document.Int64(v); ok && (n == 0 || n == 1) {
			return n == 1, replace, nil
		}
	case document.KindString:
		switch strings.ToLower(v.(string)) {
		case "true":
			return true, replace, nil
		case "false":
			return false, replace, nil
		}
		// an unrecognised string fails regardless of policy
		return nil, keep, c.mismatch(boolWords, inArray)
	}
	return c.uncoercible(boolWords, inArray)
}

func (c *coercer) coerceFloat(v any, inArray bool) (any, action, error) {
	if act, done, err := c.beforeCoerce(floatWords, inArray); done {
		return nil, act, err
	}

	switch document.KindOf(v) {
	case document.KindString:
		if f, ok := parseFloat(v.(string)); ok {
			return f, replace, nil
		}
	case document.KindBool:
		if v.(bool) {
			return 1.0, replace, nil
		}
		return 0.0, replace, nil
	}
	return c.uncoercible(floatWords, inArray)
}

func (c *coercer) coerceGeopoint(pair []any, inArray bool) (any, action, error) {
	if act, done, err := c.beforeCoerce(geopointWords, inArray); done {
		return nil, act, err
	}

	out := []any{pair[0], pair[1]}
	for i, e := range out {
		if s, ok := e.(string); ok {
			if f, ok := parseFloat(s); ok {
				out[i] = f
			}
		}
	}
	if !document.IsNumber(out[0]) || !document.IsNumber(out[1]) {
		return c.uncoercible(geopointWords, inArray)
	}
	return out, replace, nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
