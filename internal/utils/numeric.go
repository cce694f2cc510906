package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to the given number of decimal places.
// Decimal arithmetic keeps price levels stable across platforms (1.005 -> 1.01).
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundPrice rounds to cents.
func RoundPrice(v float64) float64 {
	return Round(v, 2)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// RoundPtr rounds a nullable value, preserving nil.
func RoundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	return Float(Round(*v, places))
}

// PercentChange returns (to-from)/from*100, or nil when from is not positive.
func PercentChange(from, to float64) *float64 {
	if from <= 0 || math.IsNaN(from) || math.IsNaN(to) {
		return nil
	}
	return Float((to - from) / from * 100)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
