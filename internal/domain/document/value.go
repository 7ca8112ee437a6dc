package document

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind classifies a decoded JSON value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindOther
)

// KindOf classifies v. Documents are decoded with json.Decoder.UseNumber, so integral
// and fractional literals stay distinguishable; native Go numbers are also accepted.
func KindOf(v any) Kind {
	switch x := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return KindInt
		}
		return KindFloat
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindOther
	}
}

// IsNumber reports whether v is an integer or a float.
func IsNumber(v any) bool {
	k := KindOf(v)
	return k == KindInt || k == KindFloat
}

// Int64 returns the integer value of an integral v.
func Int64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), x <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	default:
		return 0, false
	}
}

// Float64 returns the numeric value of v as a float64.
func Float64(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		if n, ok := Int64(v); ok {
			return float64(n), true
		}
		return 0, false
	}
}

// String renders a scalar value as text, used for text indexing and exact matching.
func String(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	default:
		if n, ok := Int64(v); ok {
			return strconv.FormatInt(n, 10), true
		}
		if f, ok := Float64(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}

// Float32s converts a numeric JSON array into a vector.
func Float32s(v any) ([]float32, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(arr))
	for i, e := range arr {
		f, ok := Float64(e)
		if !ok {
			return nil, false
		}
		out[i] = float32(f)
	}
	return out, true
}

// CloneValue deep-copies maps and slices of a decoded JSON value.
func CloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneFields(x)
	case []any:
		c := make([]any, len(x))
		for i, e := range x {
			c[i] = CloneValue(e)
		}
		return c
	default:
		return v
	}
}

// CloneFields deep-copies a document field map.
func CloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = CloneValue(v)
	}
	return c
}
