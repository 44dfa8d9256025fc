// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// Sum adds up values; an empty slice sums to zero.
func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// WeightsSumToOne reports whether portfolio weights add up to 1 within tolerance.
func WeightsSumToOne(weights []float64, tolerance float64) bool {
	return WithinTolerance(Sum(weights), 1, tolerance)
}

// Extent returns the smallest and largest of values. ok is false for an
// empty slice.
func Extent(values []float64) (min, max float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	return floats.Min(values), floats.Max(values), true
}

// SharpeRatio is the excess return over riskFree per unit of risk. Zero risk
// yields NaN, which callers treat as undefined.
func SharpeRatio(ret, risk, riskFree float64) float64 {
	if risk == 0 {
		return math.NaN()
	}
	return (ret - riskFree) / risk
}
