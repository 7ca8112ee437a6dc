package vectorindex

import (
	"math"

	"github.com/viterin/vek/vek32"
)

type distanceFunc func(a, b []float32) float32

func distanceFor(m Metric) distanceFunc {
	switch m {
	case L2:
		return func(a, b []float32) float32 {
			d := vek32.Distance(a, b)
			return d * d
		}
	default:
		// cosine vectors are normalized on the way in, so both reduce to 1 - dot
		return func(a, b []float32) float32 {
			return 1 - vek32.Dot(a, b)
		}
	}
}

// prepare copies v and normalizes the copy when the metric is cosine.
func prepare(v []float32, m Metric) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if m != Cosine {
		return out
	}
	norm := math.Sqrt(float64(vek32.Dot(out, out)))
	if norm == 0 {
		return out
	}
	vek32.MulNumber_Inplace(out, float32(1/norm))
	return out
}
